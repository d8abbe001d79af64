package extract

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/minatolabs/kbchat/internal/core"
)

// Rasterizer renders PDF pages to images for the OCR fallback.
type Rasterizer interface {
	PDFPages(ctx context.Context, pdfBytes []byte) ([][]byte, error)
}

// popplerRasterizer shells out to pdftoppm, the same external tooling the
// docconv conversion path relies on. Rendering is bounded by a timeout so a
// pathological document cannot hang an ingestion worker.
type popplerRasterizer struct{}

func (popplerRasterizer) PDFPages(ctx context.Context, pdfBytes []byte) ([][]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	dir, err := os.MkdirTemp("", "kbchat-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("ocr tempdir: %w", err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "in.pdf")
	if err := os.WriteFile(src, pdfBytes, 0o600); err != nil {
		return nil, fmt.Errorf("ocr write pdf: %w", err)
	}

	cmd := exec.CommandContext(ctx, "pdftoppm", "-png", "-r", "200", src, filepath.Join(dir, "page"))
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %v: %s", core.ErrExternalService, err, strings.TrimSpace(string(out)))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ocr read tempdir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".png") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names) // pdftoppm zero-pads page numbers, lexical order is page order

	pages := make([][]byte, 0, len(names))
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("ocr read page %s: %w", name, err)
		}
		pages = append(pages, b)
	}
	return pages, nil
}
