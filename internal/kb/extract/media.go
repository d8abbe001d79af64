package extract

import (
	"context"
	"fmt"

	"github.com/minatolabs/kbchat/internal/core"
	"github.com/minatolabs/kbchat/internal/kb/segment"
	"github.com/minatolabs/kbchat/internal/models"
)

// Media transcribes an uploaded audio or video file into a single transcript
// record. Files over the configured ceiling are rejected before any upstream
// call is made.
func (d *Dispatcher) Media(ctx context.Context, filename, tenantID string, data []byte) (*Result, error) {
	if d.maxMediaBytes > 0 && int64(len(data)) > d.maxMediaBytes {
		return nil, fmt.Errorf("media %q is %d bytes, limit %d: %w",
			filename, len(data), d.maxMediaBytes, core.ErrExtraction)
	}

	transcript, err := d.transcriber.Transcribe(ctx, data, filename)
	if err != nil {
		return nil, fmt.Errorf("transcribe %q: %w", filename, err)
	}

	record := models.Record{
		Section:  "Transcript",
		Content:  transcript,
		Kind:     models.KindMedia,
		File:     filename,
		TenantID: tenantID,
	}
	full := fmt.Sprintf("=== File: %s ===\n=== Transcript ===\n\n%s", filename, transcript)
	return &Result{
		Records:  dropEmpty([]models.Record{record}),
		Sections: []segment.Section{{Label: "Transcript", Content: transcript}},
		Text:     full,
	}, nil
}
