// Package index turns usable device records into embedded chunks in
// the vector store: deterministic fixed-window chunking, one embedding
// per chunk, idempotent upserts keyed on stable chunk identities.
package index

import (
	"fmt"
	"strings"

	"github.com/halcyon-health/devicekb/engine/domain"
)

const (
	// DefaultWindow is the chunk window size in characters.
	DefaultWindow = 1000
	// DefaultOverlap is how many characters consecutive windows share.
	DefaultOverlap = 200
)

// Chunk is one embeddable window of a record's extracted text. ID is a
// pure function of the submission id and window index, so re-chunking
// identical text reproduces identical ids.
type Chunk struct {
	ID           string
	SubmissionID string
	Index        int
	Text         string
}

// Chunker splits text into overlapping windows.
type Chunker struct {
	window  int
	overlap int
}

// NewChunker validates the window geometry. overlap >= window would
// never advance, so it is rejected up front as a configuration error.
func NewChunker(window, overlap int) (Chunker, error) {
	if window <= 0 {
		return Chunker{}, fmt.Errorf("index: %w: window size %d", domain.ErrConfig, window)
	}
	if overlap < 0 {
		return Chunker{}, fmt.Errorf("index: %w: negative overlap %d", domain.ErrConfig, overlap)
	}
	if overlap >= window {
		return Chunker{}, fmt.Errorf("index: %w: overlap %d >= window %d", domain.ErrConfig, overlap, window)
	}
	return Chunker{window: window, overlap: overlap}, nil
}

// Split chunks text into windows of at most the configured size,
// stepping by window-overlap characters. Whitespace-only windows are
// dropped; indices count emitted chunks, so ids stay dense.
func (c Chunker) Split(submissionID, text string) []Chunk {
	runes := []rune(text)
	step := c.window - c.overlap

	var chunks []Chunk
	for start := 0; start < len(runes); start += step {
		end := start + c.window
		if end > len(runes) {
			end = len(runes)
		}
		window := string(runes[start:end])
		if strings.TrimSpace(window) == "" {
			continue
		}
		idx := len(chunks)
		chunks = append(chunks, Chunk{
			ID:           fmt.Sprintf("%s_%d", submissionID, idx),
			SubmissionID: submissionID,
			Index:        idx,
			Text:         window,
		})
	}
	return chunks
}
