package extract

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/minatolabs/kbchat/internal/core"
	"github.com/minatolabs/kbchat/internal/kb/segment"
	"github.com/minatolabs/kbchat/internal/models"
	"github.com/minatolabs/kbchat/internal/pkg/logger"
)

// Result is the uniform output of every extractor: the sectioned record list,
// the section view, and the concatenated full text.
type Result struct {
	Records  []models.Record
	Sections []segment.Section
	Text     string
}

// SectionMap returns the label-keyed view of the extracted sections.
func (r *Result) SectionMap() map[string]string {
	return segment.Map(r.Sections)
}

// Dispatcher routes a source to the extractor for its format. It is the only
// type the orchestrator and the aggregator talk to.
type Dispatcher struct {
	llm         core.LLMProvider
	transcriber core.Transcriber
	rasterizer  Rasterizer
	fetcher     *Fetcher
	log         *logger.Logger

	maxMediaBytes int64
	maxPDFBytes   int64
}

func NewDispatcher(llm core.LLMProvider, tr core.Transcriber, log *logger.Logger, maxMediaMB, maxPDFMB int) *Dispatcher {
	return &Dispatcher{
		llm:           llm,
		transcriber:   tr,
		rasterizer:    popplerRasterizer{},
		fetcher:       NewFetcher(),
		log:           log.With("component", "extract"),
		maxMediaBytes: int64(maxMediaMB) * 1024 * 1024,
		maxPDFBytes:   int64(maxPDFMB) * 1024 * 1024,
	}
}

// KindForFilename maps a file extension onto a SourceKind. Unrecognized
// extensions return ErrUnsupportedFormat before any extraction is attempted.
func KindForFilename(filename string) (models.SourceKind, error) {
	switch strings.ToLower(strings.TrimPrefix(path.Ext(filename), ".")) {
	case "xlsx", "xls":
		return models.KindSpreadsheet, nil
	case "pdf":
		return models.KindDocument, nil
	case "doc", "docx", "rtf", "odt", "html", "htm":
		// handled by the docconv fallback but still a document source
		return models.KindDocument, nil
	case "txt", "md":
		return models.KindText, nil
	case "mp3", "mp4", "wav", "m4a", "avi", "webm", "mov":
		return models.KindMedia, nil
	default:
		return "", fmt.Errorf("extension of %q: %w", filename, core.ErrUnsupportedFormat)
	}
}

// ExtractFile runs the appropriate extractor over uploaded bytes. The
// identifier is the original filename; it becomes every record's file origin.
func (d *Dispatcher) ExtractFile(ctx context.Context, filename, tenantID string, data []byte) (*Result, error) {
	kind, err := KindForFilename(filename)
	if err != nil {
		return nil, err
	}
	switch kind {
	case models.KindSpreadsheet:
		return Spreadsheet(filename, tenantID, data)
	case models.KindDocument:
		if strings.EqualFold(path.Ext(filename), ".pdf") {
			return d.PDF(ctx, filename, tenantID, data)
		}
		return d.office(ctx, filename, tenantID, data)
	case models.KindText:
		return Text(filename, tenantID, data)
	case models.KindMedia:
		return d.Media(ctx, filename, tenantID, data)
	default:
		return nil, fmt.Errorf("kind %q: %w", kind, core.ErrUnsupportedFormat)
	}
}

// ExtractSource re-runs extraction for an already-registered source from its
// live bytes. URL sources re-fetch; file sources re-parse the stored bytes.
func (d *Dispatcher) ExtractSource(ctx context.Context, src models.Source, data []byte) (*Result, error) {
	if src.Kind == models.KindURL {
		return d.URL(ctx, src.Identifier, src.TenantID)
	}
	return d.ExtractFile(ctx, src.Identifier, src.TenantID, data)
}

// dropEmpty removes records with empty content; they must never reach the
// aggregate.
func dropEmpty(records []models.Record) []models.Record {
	out := records[:0]
	for _, r := range records {
		if strings.TrimSpace(r.Content) != "" {
			out = append(out, r)
		}
	}
	return out
}

// recordsFromSections converts segmented text into the record list shared by
// the text-like extractors.
func recordsFromSections(sections []segment.Section, kind models.SourceKind, file, url, tenantID string) []models.Record {
	records := make([]models.Record, 0, len(sections))
	for _, s := range sections {
		records = append(records, models.Record{
			Section:  s.Label,
			Content:  s.Content,
			Kind:     kind,
			File:     file,
			URL:      url,
			TenantID: tenantID,
		})
	}
	return dropEmpty(records)
}
