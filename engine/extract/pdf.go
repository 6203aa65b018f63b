// Package extract pulls text and page counts out of local PDF summary
// documents using pdfcpu.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/halcyon-health/devicekb/engine/domain"
)

// Text extracts the concatenated page text and page count from the PDF
// at path. Corrupt or unreadable files yield domain.ErrExtraction; the
// caller records the failure and moves on.
func Text(ctx context.Context, path string) (string, int, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return "", 0, fmt.Errorf("extract %s: %w: %v", filepath.Base(path), domain.ErrExtraction, err)
	}
	pageCount := pdfCtx.PageCount

	outDir, err := os.MkdirTemp("", "devicekb-extract-")
	if err != nil {
		return "", 0, fmt.Errorf("extract: temp dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(path, outDir, nil, conf); err != nil {
		return "", 0, fmt.Errorf("extract %s: %w: %v", filepath.Base(path), domain.ErrExtraction, err)
	}

	pages, err := readPageContent(outDir)
	if err != nil {
		return "", 0, fmt.Errorf("extract %s: %w: %v", filepath.Base(path), domain.ErrExtraction, err)
	}
	return strings.Join(pages, "\n\n"), pageCount, nil
}

// readPageContent collects per-page content files in page order.
// pdfcpu names them page_N or Content_page_N depending on version.
func readPageContent(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	byPage := make(map[int]string, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var pageNum int
		name := e.Name()
		if _, err := fmt.Sscanf(name, "page_%d", &pageNum); err != nil {
			if _, err := fmt.Sscanf(name, "Content_page_%d", &pageNum); err != nil {
				continue
			}
		}
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		byPage[pageNum] = string(content)
	}

	nums := make([]int, 0, len(byPage))
	for n := range byPage {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	pages := make([]string, 0, len(nums))
	for _, n := range nums {
		pages = append(pages, byPage[n])
	}
	return pages, nil
}
