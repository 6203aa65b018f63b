package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/halcyon-health/devicekb/engine/domain"
	"github.com/halcyon-health/devicekb/engine/semantic"
	"github.com/halcyon-health/devicekb/pkg/fn"
	"github.com/halcyon-health/devicekb/pkg/resilience"
)

// Provider is the embedding capability: one text in, one vector out.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is the write side of the chunk index. Satisfied by
// semantic.VectorStore.
type VectorIndex interface {
	Upsert(ctx context.Context, records []semantic.Record) error
}

// Marker persists that a record's chunks are fully indexed, so the next
// run can select only records the index does not yet cover. Satisfied
// by *store.DeviceStore.
type Marker interface {
	MarkIndexed(ctx context.Context, submissionID string, chunks int) error
}

// Deps holds the indexer's collaborators.
type Deps struct {
	Chunker  Chunker
	Provider Provider
	Index    VectorIndex
	// Marker is optional; nil skips indexed bookkeeping.
	Marker Marker
	// Limiter throttles provider calls; nil means unthrottled.
	Limiter *resilience.Limiter
	Logger  *slog.Logger
}

// Summary reports one indexing pass.
type Summary struct {
	Records          int
	Chunks           int
	Embedded         int
	ProviderFailures int
	UpsertFailures   int
}

// Indexer embeds record chunks and upserts them into the vector index.
type Indexer struct {
	deps Deps
}

// NewIndexer wires an Indexer from its dependencies.
func NewIndexer(deps Deps) *Indexer {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Indexer{deps: deps}
}

// IndexRecord chunks one record, embeds each chunk, and upserts the
// successful ones. A provider failure on one chunk is logged and
// counted, never fatal to its siblings: the deterministic chunk ids
// let a later pass fill the hole.
func (ix *Indexer) IndexRecord(ctx context.Context, rec domain.DeviceRecord) Summary {
	sum := Summary{Records: 1}
	chunks := ix.deps.Chunker.Split(rec.SubmissionID, rec.ExtractedText)
	sum.Chunks = len(chunks)
	if len(chunks) == 0 {
		return sum
	}

	records := make([]semantic.Record, 0, len(chunks))
	for _, ch := range chunks {
		vec, err := ix.embed(ctx, ch.Text)
		if err != nil {
			sum.ProviderFailures++
			ix.deps.Logger.Warn("index: embed chunk failed",
				"chunk_id", ch.ID,
				"error", fmt.Errorf("%w: %v", domain.ErrProvider, err),
			)
			continue
		}
		records = append(records, semantic.Record{
			PointID:      PointID(ch.ID),
			ChunkID:      ch.ID,
			Vector:       vec,
			Text:         ch.Text,
			SubmissionID: rec.SubmissionID,
			DeviceName:   rec.DeviceName,
			Company:      rec.Company,
			Panel:        rec.Panel,
			DecisionDate: rec.DecisionDate,
			ProductCode:  rec.ProductCode,
			ChunkIndex:   ch.Index,
		})
	}
	sum.Embedded = len(records)

	if len(records) > 0 {
		if err := ix.deps.Index.Upsert(ctx, records); err != nil {
			sum.UpsertFailures++
			sum.Embedded = 0
			ix.deps.Logger.Error("index: upsert failed",
				"submission_id", rec.SubmissionID, "error", err)
			return sum
		}
	}

	// Mark only a complete pass. A partial one (provider failures, or
	// the upsert above) leaves the record unmarked so the next run
	// picks it up again.
	if sum.ProviderFailures == 0 && ix.deps.Marker != nil {
		if err := ix.deps.Marker.MarkIndexed(ctx, rec.SubmissionID, sum.Embedded); err != nil {
			ix.deps.Logger.Warn("index: mark indexed failed",
				"submission_id", rec.SubmissionID, "error", err)
		}
	}
	return sum
}

// IndexAll runs IndexRecord over records with bounded concurrency.
// Records are independent; failures in one never touch another.
func (ix *Indexer) IndexAll(ctx context.Context, records []domain.DeviceRecord, workers int) Summary {
	results := fn.ParMapResult(records, workers, func(rec domain.DeviceRecord) fn.Result[Summary] {
		return fn.Ok(ix.IndexRecord(ctx, rec))
	})

	var total Summary
	for _, r := range results {
		s, _ := r.Unwrap()
		total.Records += s.Records
		total.Chunks += s.Chunks
		total.Embedded += s.Embedded
		total.ProviderFailures += s.ProviderFailures
		total.UpsertFailures += s.UpsertFailures
	}
	return total
}

func (ix *Indexer) embed(ctx context.Context, text string) ([]float32, error) {
	if ix.deps.Limiter != nil {
		if err := ix.deps.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return ix.deps.Provider.Embed(ctx, text)
}

// PointID derives the stable vector-store point id for a chunk id.
// Qdrant requires UUID point ids; hashing the chunk id keeps the
// mapping deterministic across runs.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String()
}
