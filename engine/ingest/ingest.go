// Package ingest turns reconciliation work items into committed device
// records: locate and fetch the summary PDF if absent, extract its
// text, and upsert the result. Items are independent; one failure never
// aborts the run.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/halcyon-health/devicekb/engine/docs"
	"github.com/halcyon-health/devicekb/engine/domain"
	"github.com/halcyon-health/devicekb/engine/extract"
	"github.com/halcyon-health/devicekb/engine/locator"
	"github.com/halcyon-health/devicekb/pkg/events"
	"github.com/halcyon-health/devicekb/pkg/fn"
)

// DocFetcher downloads one document URL to a local path. Satisfied by
// *Fetcher.
type DocFetcher interface {
	Fetch(ctx context.Context, url, destPath string) error
}

// RecordStore is the write side of the relational store. Satisfied by
// *store.DeviceStore.
type RecordStore interface {
	Upsert(ctx context.Context, rec domain.DeviceRecord) error
}

// Locator maps a submission id to its document URL; false means no URL
// scheme exists for that submission type.
type Locator func(submissionID string) (string, bool)

// Extractor pulls text and a page count from a local PDF.
type Extractor func(ctx context.Context, path string) (string, int, error)

// Publisher announces a committed record; nil disables notifications.
type Publisher func(ctx context.Context, ev events.RecordIngested) error

// Deps holds the ingestor's collaborators. Locate and Extract default
// to the FDA URL scheme and pdfcpu extraction.
type Deps struct {
	Docs    docs.Dir
	Store   RecordStore
	Fetcher DocFetcher
	Locate  Locator
	Extract Extractor
	Publish Publisher
	Logger  *slog.Logger
	Now     func() time.Time
}

// Summary reports one ingest run. Skips are expected outcomes, not
// errors: the host genuinely lacks documents for some submissions.
type Summary struct {
	Items              int
	Ingested           int
	NotFound           int
	FetchFailures      int
	ExtractionFailures int
	StoreFailures      int
	Cancelled          int
	ByReason           map[domain.Reason]int
}

// Ingestor processes work items into device records.
type Ingestor struct {
	deps Deps
}

// NewIngestor wires an Ingestor, filling defaulted dependencies.
func NewIngestor(deps Deps) *Ingestor {
	if deps.Locate == nil {
		deps.Locate = locator.SummaryURL
	}
	if deps.Extract == nil {
		deps.Extract = extract.Text
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Ingestor{deps: deps}
}

// Process runs one work item through fetch, extract, and upsert.
func (ing *Ingestor) Process(ctx context.Context, item domain.WorkItem) fn.Result[domain.DeviceRecord] {
	pipeline := fn.Then(
		fn.Then(
			fn.TracedStage("ingest.document", ing.ensureDocument),
			fn.TracedStage("ingest.extract", ing.extractRecord),
		),
		fn.TracedStage("ingest.commit", ing.commitRecord),
	)
	return pipeline(ctx, item)
}

// Run processes items with bounded concurrency and aggregates their
// outcomes. Failed items are logged with their classification; the run
// itself always completes.
func (ing *Ingestor) Run(ctx context.Context, items []domain.WorkItem, workers int) Summary {
	results := fn.ParMapResult(items, workers, func(item domain.WorkItem) fn.Result[domain.DeviceRecord] {
		return ing.Process(ctx, item)
	})

	sum := Summary{Items: len(items), ByReason: make(map[domain.Reason]int)}
	for i, r := range results {
		item := items[i]
		rec, err := r.Unwrap()
		if err == nil {
			sum.Ingested++
			sum.ByReason[item.Reason]++
			ing.deps.Logger.Info("ingest: record committed",
				"submission_id", rec.SubmissionID,
				"reason", string(item.Reason),
				"pdf_pages", rec.PDFPages,
			)
			ing.announce(ctx, item, rec)
			continue
		}
		switch {
		// An interrupt is not a store failure; check it before the
		// catch-all so the summary reports what actually happened.
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			sum.Cancelled++
		case errors.Is(err, domain.ErrNotFound):
			sum.NotFound++
		case errors.Is(err, errTransientFetch):
			sum.FetchFailures++
		case errors.Is(err, domain.ErrExtraction):
			sum.ExtractionFailures++
		default:
			sum.StoreFailures++
		}
		ing.deps.Logger.Warn("ingest: item skipped",
			"submission_id", item.Meta.SubmissionID,
			"reason", string(item.Reason),
			"error", err,
		)
	}
	return sum
}

// ensureDocument makes the summary PDF present locally, fetching it
// when absent. Corrupted-extraction items usually already have the
// file on disk and skip the network entirely.
func (ing *Ingestor) ensureDocument(ctx context.Context, item domain.WorkItem) fn.Result[domain.WorkItem] {
	id := item.Meta.SubmissionID
	if ing.deps.Docs.Exists(id) {
		return fn.Ok(item)
	}
	url, ok := ing.deps.Locate(id)
	if !ok {
		return fn.Errf[domain.WorkItem]("ingest: %w: no document URL scheme for %s", domain.ErrNotFound, id)
	}
	if err := ing.deps.Fetcher.Fetch(ctx, url, ing.deps.Docs.Path(id)); err != nil {
		return fn.Err[domain.WorkItem](err)
	}
	return fn.Ok(item)
}

// extractRecord builds the full record from the local document.
func (ing *Ingestor) extractRecord(ctx context.Context, item domain.WorkItem) fn.Result[domain.DeviceRecord] {
	path := ing.deps.Docs.Path(item.Meta.SubmissionID)
	text, pages, err := ing.deps.Extract(ctx, path)
	if err != nil {
		return fn.Err[domain.DeviceRecord](err)
	}
	rec := domain.DeviceRecord{
		DeviceMeta:    item.Meta,
		PDFPath:       path,
		PDFPages:      pages,
		ExtractedText: text,
		IngestedAt:    ing.deps.Now().UTC(),
	}
	if !rec.Usable() {
		return fn.Errf[domain.DeviceRecord]("ingest: %w: %s yielded %d chars",
			domain.ErrExtraction, item.Meta.SubmissionID, len(text))
	}
	return fn.Ok(rec)
}

// commitRecord upserts the record.
func (ing *Ingestor) commitRecord(ctx context.Context, rec domain.DeviceRecord) fn.Result[domain.DeviceRecord] {
	if err := ing.deps.Store.Upsert(ctx, rec); err != nil {
		return fn.Err[domain.DeviceRecord](fmt.Errorf("ingest: upsert %s: %w", rec.SubmissionID, err))
	}
	return fn.Ok(rec)
}

// announce publishes the committed record when a publisher is wired. A
// publish failure is logged but never rolls back the committed row.
func (ing *Ingestor) announce(ctx context.Context, item domain.WorkItem, rec domain.DeviceRecord) {
	if ing.deps.Publish == nil {
		return
	}
	ev := events.RecordIngested{
		SubmissionID: rec.SubmissionID,
		Reason:       string(item.Reason),
		PDFPages:     rec.PDFPages,
		IngestedAt:   rec.IngestedAt,
	}
	if err := ing.deps.Publish(ctx, ev); err != nil {
		ing.deps.Logger.Warn("ingest: publish failed",
			"submission_id", rec.SubmissionID, "error", err)
	}
}
