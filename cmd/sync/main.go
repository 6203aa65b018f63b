// Command sync runs one incremental pipeline pass: diff the current
// device snapshot against the prior one, scan local state for holes,
// ingest the reconciliation plan, and index every changed record into
// the vector store. On success the current snapshot is promoted to
// prior for the next run.
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/halcyon-health/devicekb/engine/docs"
	"github.com/halcyon-health/devicekb/engine/domain"
	"github.com/halcyon-health/devicekb/engine/index"
	"github.com/halcyon-health/devicekb/engine/ingest"
	"github.com/halcyon-health/devicekb/engine/integrity"
	"github.com/halcyon-health/devicekb/engine/semantic"
	"github.com/halcyon-health/devicekb/engine/snapshot"
	"github.com/halcyon-health/devicekb/engine/store"
	"github.com/halcyon-health/devicekb/pkg/events"
	"github.com/halcyon-health/devicekb/pkg/metrics"
	"github.com/halcyon-health/devicekb/pkg/mid"
	"github.com/halcyon-health/devicekb/pkg/ollama"
	"github.com/halcyon-health/devicekb/pkg/resilience"
)

var met = metrics.New()

var (
	mPlanned   = func(reason string) *metrics.Counter { return met.Counter(metrics.WithLabels("devicekb_sync_planned_total", "reason", reason), "Work items planned") }
	mIngested  = met.Counter("devicekb_sync_ingested_total", "Records committed to the store")
	mSkipped   = func(cause string) *metrics.Counter { return met.Counter(metrics.WithLabels("devicekb_sync_skipped_total", "cause", cause), "Items skipped") }
	mChunks    = met.Counter("devicekb_sync_chunks_total", "Chunks produced from changed records")
	mEmbedded  = met.Counter("devicekb_sync_embeddings_total", "Chunk embeddings written to the index")
	mEmbedErrs = met.Counter("devicekb_sync_provider_errors_total", "Embedding provider failures")
	mIndexErrs = met.Counter("devicekb_sync_upsert_errors_total", "Vector index upsert failures")
	mSnapSize  = met.Gauge("devicekb_sync_snapshot_rows", "Rows in the current snapshot")
)

func main() {
	_ = godotenv.Load()

	var (
		priorPath   = flag.String("prior", envOr("DEVICEKB_PRIOR", "data/prior.csv"), "prior snapshot CSV")
		currentPath = flag.String("current", envOr("DEVICEKB_CURRENT", "data/current.csv"), "current snapshot CSV")
		dbPath      = flag.String("db", envOr("DEVICEKB_DB", "data/devices.db"), "sqlite database path")
		docDir      = flag.String("docs", envOr("DEVICEKB_DOCS", "data/pdfs"), "summary PDF directory")
		qdrantAddr  = flag.String("qdrant", envOr("QDRANT_URL", "localhost:6334"), "Qdrant gRPC address")
		collection  = flag.String("collection", envOr("QDRANT_COLLECTION", "fda_devices"), "Qdrant collection name")
		ollamaURL   = flag.String("ollama", envOr("OLLAMA_URL", "http://localhost:11434"), "Ollama base URL")
		model       = flag.String("model", envOr("OLLAMA_MODEL", "nomic-embed-text"), "embedding model")
		dims        = flag.Int("dims", 768, "embedding vector dimensions")
		natsURL     = flag.String("nats", envOr("NATS_URL", ""), "NATS URL for ingest notifications (empty disables)")
		workers     = flag.Int("workers", 4, "concurrent work items")
		fetchGap    = flag.Duration("fetch-interval", time.Second, "minimum spacing between document fetches")
		embedRate   = flag.Float64("embed-rate", 20, "embedding calls per second")
		metricsPort = flag.Int("metrics-port", 9093, "Prometheus /metrics port")
	)
	flag.Parse()

	log := slog.Default()
	serveOps(*metricsPort, log)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, log, config{
		priorPath:   *priorPath,
		currentPath: *currentPath,
		dbPath:      *dbPath,
		docDir:      *docDir,
		qdrantAddr:  *qdrantAddr,
		collection:  *collection,
		ollamaURL:   *ollamaURL,
		model:       *model,
		dims:        *dims,
		natsURL:     *natsURL,
		workers:     *workers,
		fetchGap:    *fetchGap,
		embedRate:   *embedRate,
	}); err != nil {
		log.Error("sync failed", "error", err)
		os.Exit(1)
	}
}

type config struct {
	priorPath   string
	currentPath string
	dbPath      string
	docDir      string
	qdrantAddr  string
	collection  string
	ollamaURL   string
	model       string
	dims        int
	natsURL     string
	workers     int
	fetchGap    time.Duration
	embedRate   float64
}

func run(ctx context.Context, log *slog.Logger, cfg config) error {
	current, err := loadSnapshot(cfg.currentPath)
	if err != nil {
		return fmt.Errorf("load current snapshot: %w", err)
	}
	prior, err := loadSnapshot(cfg.priorPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load prior snapshot: %w", err)
		}
		log.Info("no prior snapshot, treating every row as new")
		prior = snapshot.Empty()
	}
	mSnapSize.Set(int64(current.Len()))

	dir, err := docs.NewDir(cfg.docDir)
	if err != nil {
		return err
	}
	db, err := store.Open(cfg.dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	vs, err := semantic.New(cfg.qdrantAddr, cfg.collection)
	if err != nil {
		return err
	}
	defer vs.Close()
	if err := vs.EnsureCollection(ctx, cfg.dims); err != nil {
		return err
	}
	log.Info("connected to Qdrant", "collection", cfg.collection, "dims", cfg.dims)

	var publish ingest.Publisher
	if cfg.natsURL != "" {
		nc, err := nats.Connect(cfg.natsURL)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Drain()
		publish = func(ctx context.Context, ev events.RecordIngested) error {
			return events.Publish(ctx, nc, events.SubjectIngested, ev)
		}
		log.Info("publishing ingest notifications", "subject", events.SubjectIngested)
	}

	// Plan: snapshot diff plus local integrity findings.
	changes := snapshot.Diff(prior, current)
	findings, err := integrity.Scan(ctx, current, dir, db)
	if err != nil {
		return err
	}
	plan := integrity.Plan(changes.Added, findings)
	for _, item := range plan {
		mPlanned(string(item.Reason)).Inc()
	}
	log.Info("reconciliation plan",
		"added", len(changes.Added),
		"removed", len(changes.Removed),
		"findings", len(findings),
		"items", len(plan),
	)
	for _, id := range changes.Removed {
		log.Info("submission absent from current snapshot, retained", "submission_id", id)
	}

	// Ingest.
	ingestor := ingest.NewIngestor(ingest.Deps{
		Docs:    dir,
		Store:   db,
		Fetcher: ingest.NewFetcher(30*time.Second, cfg.fetchGap),
		Publish: publish,
		Logger:  log,
	})
	ingSum := ingestor.Run(ctx, plan, cfg.workers)
	mIngested.Add(int64(ingSum.Ingested))
	mSkipped("not-found").Add(int64(ingSum.NotFound))
	mSkipped("fetch").Add(int64(ingSum.FetchFailures))
	mSkipped("extraction").Add(int64(ingSum.ExtractionFailures))
	mSkipped("store").Add(int64(ingSum.StoreFailures))
	mSkipped("cancelled").Add(int64(ingSum.Cancelled))

	// Index every usable record the vector index does not cover yet:
	// rows this run upserted, plus any left unindexed by an earlier
	// interrupted or partially failed run. Old chunks are cleared first
	// so a shorter re-extraction leaves no stale tail behind.
	changed, err := db.ListUnindexed(ctx)
	if err != nil {
		return err
	}
	for _, rec := range changed {
		if err := vs.DeleteBySubmission(ctx, rec.SubmissionID); err != nil {
			log.Warn("clearing old chunks failed", "submission_id", rec.SubmissionID, "error", err)
		}
	}

	chunker, err := index.NewChunker(index.DefaultWindow, index.DefaultOverlap)
	if err != nil {
		return err
	}
	indexer := index.NewIndexer(index.Deps{
		Chunker:  chunker,
		Provider: ollama.NewClient(cfg.ollamaURL, cfg.model, 0),
		Index:    vs,
		Marker:   db,
		Limiter:  resilience.NewLimiter(resilience.LimiterOpts{Rate: cfg.embedRate, Burst: 1}),
		Logger:   log,
	})
	idxSum := indexer.IndexAll(ctx, changed, cfg.workers)
	mChunks.Add(int64(idxSum.Chunks))
	mEmbedded.Add(int64(idxSum.Embedded))
	mEmbedErrs.Add(int64(idxSum.ProviderFailures))
	mIndexErrs.Add(int64(idxSum.UpsertFailures))

	total, err := db.Count(ctx)
	if err != nil {
		return err
	}
	log.Info("sync complete",
		"planned", ingSum.Items,
		"ingested", ingSum.Ingested,
		"not_found", ingSum.NotFound,
		"fetch_failures", ingSum.FetchFailures,
		"extraction_failures", ingSum.ExtractionFailures,
		"store_failures", ingSum.StoreFailures,
		"cancelled", ingSum.Cancelled,
		"store_records", total,
		"indexed_records", idxSum.Records,
		"chunks", idxSum.Chunks,
		"embedded", idxSum.Embedded,
		"provider_failures", idxSum.ProviderFailures,
	)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := promoteSnapshot(cfg.currentPath, cfg.priorPath); err != nil {
		return fmt.Errorf("promote snapshot: %w", err)
	}
	log.Info("snapshot promoted", "prior", cfg.priorPath)
	return nil
}

// loadSnapshot reads a snapshot CSV. The header row names the columns;
// order does not matter. Rows failing metadata validation are skipped.
func loadSnapshot(path string) (snapshot.Snapshot, error) {
	fh, err := os.Open(path)
	if err != nil {
		return snapshot.Empty(), err
	}
	defer fh.Close()

	r := csv.NewReader(fh)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return snapshot.Empty(), fmt.Errorf("read header of %s: %w", path, err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := col["submission_number"]; !ok {
		return snapshot.Empty(), fmt.Errorf("%s: missing submission_number column", path)
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var rows []domain.DeviceMeta
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return snapshot.Empty(), fmt.Errorf("read %s: %w", path, err)
		}
		meta := domain.DeviceMeta{
			SubmissionID: field(row, "submission_number"),
			DecisionDate: field(row, "decision_date"),
			DeviceName:   field(row, "device_name"),
			Company:      field(row, "company"),
			Panel:        field(row, "panel"),
			ProductCode:  field(row, "product_code"),
		}
		if domain.ValidateMeta(meta) != nil {
			continue
		}
		rows = append(rows, meta)
	}
	return snapshot.FromRows(rows), nil
}

// promoteSnapshot copies current over prior. A copy, not a rename: the
// current file stays put for inspection and the next download.
func promoteSnapshot(currentPath, priorPath string) error {
	src, err := os.Open(currentPath)
	if err != nil {
		return err
	}
	defer src.Close()

	tmp := priorPath + ".tmp"
	dst, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(tmp)
		return err
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, priorPath)
}

// serveOps exposes /metrics and /healthz in the background for the
// duration of the run.
func serveOps(port int, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", met.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	handler := mid.Chain(mux, mid.Recover(log), mid.Logger(log))
	go func() {
		_ = http.ListenAndServe(fmt.Sprintf(":%d", port), handler)
	}()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
