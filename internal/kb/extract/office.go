package extract

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path"
	"strings"

	"code.sajari.com/docconv"

	"github.com/minatolabs/kbchat/internal/core"
	"github.com/minatolabs/kbchat/internal/kb/segment"
	"github.com/minatolabs/kbchat/internal/models"
)

// office converts word-processor and HTML documents through docconv and
// segments the plain text it produces.
func (d *Dispatcher) office(ctx context.Context, filename, tenantID string, data []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := docconv.Convert(bytes.NewReader(data), contentTypeFor(filename), true)
	if err != nil {
		return nil, fmt.Errorf("convert %q: %w: %v", filename, core.ErrExtraction, err)
	}

	text := strings.TrimSpace(res.Body)
	if text == "" {
		return nil, fmt.Errorf("convert %q: %w: no text extracted", filename, core.ErrExtraction)
	}

	sections := segment.Split(text)
	records := recordsFromSections(sections, models.KindDocument, filename, "", tenantID)

	var b strings.Builder
	fmt.Fprintf(&b, "=== File: %s ===\n", filename)
	for _, s := range sections {
		fmt.Fprintf(&b, "\n=== %s ===\n%s\n", s.Label, s.Content)
	}
	return &Result{Records: records, Sections: sections, Text: b.String()}, nil
}

func contentTypeFor(filename string) string {
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(filename))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
