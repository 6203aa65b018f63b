// Package retrieval answers natural-language questions against the
// chunk index: embed the query with the same provider that indexed the
// chunks, then k-NN search with optional metadata filters.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/halcyon-health/devicekb/engine/domain"
	"github.com/halcyon-health/devicekb/engine/semantic"
)

// DefaultTopK is how many chunks a query returns unless asked otherwise.
const DefaultTopK = 5

// Provider embeds query text. It must be the same model family that
// embedded the indexed chunks or distances are meaningless.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index is the read side of the vector store. Satisfied by
// *semantic.VectorStore.
type Index interface {
	CollectionExists(ctx context.Context) (bool, error)
	Search(ctx context.Context, vector []float32, topK int, filters map[string]string) ([]semantic.Hit, error)
}

// Query is one retrieval request. Filters match payload fields exactly
// (e.g. "panel" or "product_code").
type Query struct {
	Text    string
	TopK    int
	Filters map[string]string
}

// Service answers queries against the index.
type Service struct {
	provider Provider
	index    Index
	logger   *slog.Logger
}

// NewService wires a retrieval Service.
func NewService(provider Provider, index Index, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{provider: provider, index: index, logger: logger}
}

// Retrieve embeds q and returns the nearest chunks in ascending
// distance order. A missing collection returns an empty result, not an
// error: before the first sync there is simply nothing to search.
func (s *Service) Retrieve(ctx context.Context, q Query) ([]semantic.Hit, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, fmt.Errorf("retrieval: %w: empty query", domain.ErrConfig)
	}
	topK := q.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	exists, err := s.index.CollectionExists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		s.logger.Info("retrieval: collection absent, returning no hits")
		return []semantic.Hit{}, nil
	}

	vector, err := s.provider.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("retrieval: %w: embed query: %v", domain.ErrProvider, err)
	}

	hits, err := s.index.Search(ctx, vector, topK, q.Filters)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("retrieval: query answered", "hits", len(hits), "top_k", topK)
	return hits, nil
}
