package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"

	"github.com/minatolabs/kbchat/internal/core"
	"github.com/minatolabs/kbchat/internal/kb/segment"
	"github.com/minatolabs/kbchat/internal/models"
)

const ocrInstruction = `Extract ALL text content from this document page.
For tables: keep the table structure in markdown, preserve all column headers
and row labels, and capture numerical data accurately.
For multi-column layouts: process columns left to right and keep their content
clearly separated.
Preserve all headers, footers, page numbers, and footnotes.`

// PDF extracts a document page by page. Each page is one section labeled
// "Page <n>"; the concatenated page text is additionally re-segmented with
// heading detection so retrieval gets finer-grained records. A PDF with no
// extractable text on any page (scanned/image-only) falls back to the OCR
// path. A failed OCR page becomes an inline error marker, never a failed
// document.
func (d *Dispatcher) PDF(ctx context.Context, filename, tenantID string, data []byte) (*Result, error) {
	if d.maxPDFBytes > 0 && int64(len(data)) > d.maxPDFBytes {
		return nil, fmt.Errorf("pdf %q is %d bytes, limit %d: %w",
			filename, len(data), d.maxPDFBytes, core.ErrExtraction)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w: %v", filename, core.ErrExtraction, err)
	}

	var (
		sections []segment.Section
		allText  strings.Builder
		full     strings.Builder
	)
	full.WriteString(fmt.Sprintf("=== File: %s ===\n\n", filename))

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			d.log.Warn("pdf page text failed", "file", filename, "page", i, "err", err)
			continue
		}
		pageText = strings.ReplaceAll(pageText, "\x00", "")
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		label := fmt.Sprintf("Page %d", i)
		sections = append(sections, segment.Section{Label: label, Content: pageText})
		allText.WriteString(pageText + "\n")
		full.WriteString(fmt.Sprintf("=== %s ===\n%s\n\n", label, pageText))
	}

	text := allText.String()
	if strings.TrimSpace(text) == "" {
		ocrText := d.ocrPDF(ctx, filename, data)
		text = ocrText
		full.WriteString(ocrText)
		sections = append(sections, segment.Section{Label: "OCR", Content: ocrText})
	}

	records := recordsFromSections(segment.Split(text), models.KindDocument, filename, "", tenantID)
	if len(records) == 0 && strings.TrimSpace(text) != "" {
		records = []models.Record{{
			Section:  segment.DefaultLabel,
			Content:  text,
			Kind:     models.KindDocument,
			File:     filename,
			TenantID: tenantID,
		}}
	}

	return &Result{Records: records, Sections: sections, Text: full.String()}, nil
}

// ocrPDF rasterizes each page and transcribes it with the multimodal
// generation call. Pages run concurrently with a bounded limit; one bad page
// degrades to its own error marker.
func (d *Dispatcher) ocrPDF(ctx context.Context, filename string, data []byte) string {
	images, err := d.rasterizer.PDFPages(ctx, data)
	if err != nil {
		d.log.Error("pdf rasterize failed", "file", filename, "err", err)
		return fmt.Sprintf("[Error rasterizing %s: %v]\n", filename, err)
	}

	results := make([]string, len(images))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, img := range images {
		g.Go(func() error {
			prompt := fmt.Sprintf("%s\n\nPage %d:", ocrInstruction, i+1)
			out, err := d.llm.GenerateWithImages(gctx, prompt, [][]byte{img})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				results[i] = fmt.Sprintf("[Error processing page %d: %v]", i+1, err)
				return nil
			}
			results[i] = out
			return nil
		})
	}
	_ = g.Wait()

	var b strings.Builder
	for i, r := range results {
		b.WriteString(fmt.Sprintf("\n--- Page %d ---\n%s\n", i+1, r))
	}
	return b.String()
}
