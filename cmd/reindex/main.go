// Command reindex rebuilds the vector index from every usable record
// in the relational store, without touching snapshots or documents.
// Useful after changing the embedding model or chunking geometry.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/halcyon-health/devicekb/engine/index"
	"github.com/halcyon-health/devicekb/engine/semantic"
	"github.com/halcyon-health/devicekb/engine/store"
	"github.com/halcyon-health/devicekb/pkg/ollama"
	"github.com/halcyon-health/devicekb/pkg/resilience"
)

func main() {
	_ = godotenv.Load()

	var (
		dbPath     = flag.String("db", envOr("DEVICEKB_DB", "data/devices.db"), "sqlite database path")
		qdrantAddr = flag.String("qdrant", envOr("QDRANT_URL", "localhost:6334"), "Qdrant gRPC address")
		collection = flag.String("collection", envOr("QDRANT_COLLECTION", "fda_devices"), "Qdrant collection name")
		ollamaURL  = flag.String("ollama", envOr("OLLAMA_URL", "http://localhost:11434"), "Ollama base URL")
		model      = flag.String("model", envOr("OLLAMA_MODEL", "nomic-embed-text"), "embedding model")
		dims       = flag.Int("dims", 768, "embedding vector dimensions")
		window     = flag.Int("window", index.DefaultWindow, "chunk window size in characters")
		overlap    = flag.Int("overlap", index.DefaultOverlap, "chunk overlap in characters")
		workers    = flag.Int("workers", 4, "concurrent records")
		embedRate  = flag.Float64("embed-rate", 20, "embedding calls per second")
	)
	flag.Parse()

	log := slog.Default()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	chunker, err := index.NewChunker(*window, *overlap)
	if err != nil {
		log.Error("invalid chunk geometry", "error", err)
		os.Exit(1)
	}

	db, err := store.Open(*dbPath)
	if err != nil {
		log.Error("open store failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	vs, err := semantic.New(*qdrantAddr, *collection)
	if err != nil {
		log.Error("qdrant connect failed", "error", err)
		os.Exit(1)
	}
	defer vs.Close()
	if err := vs.EnsureCollection(ctx, *dims); err != nil {
		log.Error("qdrant ensure collection failed", "error", err)
		os.Exit(1)
	}

	records, err := db.ListUsable(ctx)
	if err != nil {
		log.Error("list records failed", "error", err)
		os.Exit(1)
	}
	log.Info("reindexing", "records", len(records), "collection", *collection)

	for _, rec := range records {
		if err := vs.DeleteBySubmission(ctx, rec.SubmissionID); err != nil {
			log.Warn("clearing old chunks failed", "submission_id", rec.SubmissionID, "error", err)
		}
	}

	indexer := index.NewIndexer(index.Deps{
		Chunker:  chunker,
		Provider: ollama.NewClient(*ollamaURL, *model, 0),
		Index:    vs,
		Marker:   db,
		Limiter:  resilience.NewLimiter(resilience.LimiterOpts{Rate: *embedRate, Burst: 1}),
		Logger:   log,
	})
	sum := indexer.IndexAll(ctx, records, *workers)

	log.Info("reindex complete",
		"records", sum.Records,
		"chunks", sum.Chunks,
		"embedded", sum.Embedded,
		"provider_failures", sum.ProviderFailures,
		"upsert_failures", sum.UpsertFailures,
	)
	if ctx.Err() != nil {
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
