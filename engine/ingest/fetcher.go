package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/halcyon-health/devicekb/engine/domain"
)

// errTransientFetch marks a fetch failure that is neither a 404 nor a
// local configuration problem; the item is skipped for this run.
var errTransientFetch = errors.New("transient fetch failure")

// The FDA document host rejects requests with default Go user agents.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Fetcher downloads summary PDFs, throttling requests to stay polite
// to the external host.
type Fetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// NewFetcher builds a Fetcher with one request per minInterval and a
// per-request timeout.
func NewFetcher(timeout, minInterval time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if minInterval <= 0 {
		minInterval = time.Second
	}
	return &Fetcher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter:   rate.NewLimiter(rate.Every(minInterval), 1),
		userAgent: browserUserAgent,
	}
}

// Fetch downloads url to destPath. HTTP 404 yields domain.ErrNotFound;
// other failures are transient and also non-fatal to the run. The file
// lands via a .tmp rename only after its PDF magic bytes check out, so
// a partial download never masquerades as a document.
func (f *Fetcher) Fetch(ctx context.Context, url, destPath string) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("ingest: build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("ingest: %w: %v", errTransientFetch, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("ingest: %w: %s", domain.ErrNotFound, url)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("ingest: %w: status %d from %s", errTransientFetch, resp.StatusCode, url)
	}

	tmpPath := destPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ingest: create %s: %w", tmpPath, err)
	}
	_, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ingest: %w: write %s: %v", errTransientFetch, destPath, errors.Join(copyErr, closeErr))
	}

	if err := verifyPDF(tmpPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ingest: %w: %s: %v", domain.ErrNotFound, url, err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ingest: rename %s: %w", destPath, err)
	}
	return nil
}

// verifyPDF checks the %PDF magic bytes. The FDA host serves HTML
// error pages with status 200 for some stale links.
func verifyPDF(path string) error {
	fh, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fh.Close()

	header := make([]byte, 5)
	n, err := fh.Read(header)
	if err != nil || n < 4 {
		return fmt.Errorf("cannot read PDF header")
	}
	if string(header[:4]) != "%PDF" {
		return fmt.Errorf("not a PDF")
	}
	return nil
}
