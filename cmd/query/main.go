// Command query runs one retrieval against the device chunk index and
// prints the ranked results with their metadata and cosine distance.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/halcyon-health/devicekb/engine/retrieval"
	"github.com/halcyon-health/devicekb/engine/semantic"
	"github.com/halcyon-health/devicekb/pkg/ollama"
)

func main() {
	_ = godotenv.Load()

	var (
		qdrantAddr  = flag.String("qdrant", envOr("QDRANT_URL", "localhost:6334"), "Qdrant gRPC address")
		collection  = flag.String("collection", envOr("QDRANT_COLLECTION", "fda_devices"), "Qdrant collection name")
		ollamaURL   = flag.String("ollama", envOr("OLLAMA_URL", "http://localhost:11434"), "Ollama base URL")
		model       = flag.String("model", envOr("OLLAMA_MODEL", "nomic-embed-text"), "embedding model")
		topK        = flag.Int("k", retrieval.DefaultTopK, "number of chunks to return")
		panel       = flag.String("panel", "", "filter by advisory panel")
		productCode = flag.String("product-code", "", "filter by product code")
		company     = flag.String("company", "", "filter by company")
	)
	flag.Parse()

	text := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if text == "" {
		fmt.Fprintln(os.Stderr, "usage: query [flags] <question>")
		os.Exit(2)
	}

	log := slog.Default()
	ctx := context.Background()

	vs, err := semantic.New(*qdrantAddr, *collection)
	if err != nil {
		log.Error("qdrant connect failed", "error", err)
		os.Exit(1)
	}
	defer vs.Close()

	filters := map[string]string{}
	if *panel != "" {
		filters["panel"] = *panel
	}
	if *productCode != "" {
		filters["product_code"] = *productCode
	}
	if *company != "" {
		filters["company"] = *company
	}

	svc := retrieval.NewService(ollama.NewClient(*ollamaURL, *model, 0), vs, log)
	hits, err := svc.Retrieve(ctx, retrieval.Query{Text: text, TopK: *topK, Filters: filters})
	if err != nil {
		log.Error("retrieval failed", "error", err)
		os.Exit(1)
	}
	if len(hits) == 0 {
		fmt.Println("no results")
		return
	}

	for i, h := range hits {
		fmt.Printf("%d. %s  distance=%.4f\n", i+1, h.ChunkID, h.Distance)
		fmt.Printf("   %s | %s | %s | %s\n",
			h.Meta["device_name"], h.Meta["company"], h.Meta["panel"], h.Meta["decision_date"])
		fmt.Printf("   %s\n\n", excerpt(h.Text, 240))
	}
}

// excerpt trims text to at most n runes on a word boundary.
func excerpt(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	cut := string(runes[:n])
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "..."
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
