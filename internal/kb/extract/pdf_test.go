package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minatolabs/kbchat/internal/core"
	"github.com/minatolabs/kbchat/internal/pkg/logger"
)

// pagePDF builds a valid single-page document with no text content, computing
// the xref offsets as it writes.
func pagePDF() []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, 4)
	writeObj := func(n int, body string) {
		offsets[n] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", n, body)
	}
	writeObj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	writeObj(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>")
	xref := b.Len()
	b.WriteString("xref\n0 4\n0000000000 65535 f \n")
	for n := 1; n <= 3; n++ {
		fmt.Fprintf(&b, "%010d 00000 n \n", offsets[n])
	}
	fmt.Fprintf(&b, "trailer\n<< /Size 4 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xref)
	return b.Bytes()
}

func TestPDFRejectsGarbage(t *testing.T) {
	d := testDispatcher(&fakeLLM{}, &fakeTranscriber{})
	_, err := d.PDF(context.Background(), "broken.pdf", "t1", []byte("not a pdf"))
	assert.ErrorIs(t, err, core.ErrExtraction)
}

func TestPDFWithoutTextFallsBackToOCR(t *testing.T) {
	llm := &fakeLLM{out: "scanned menu contents"}
	d := testDispatcher(llm, &fakeTranscriber{})
	d.rasterizer = &fakeRasterizer{pages: [][]byte{{1}}}

	res, err := d.PDF(context.Background(), "scan.pdf", "t1", pagePDF())
	require.NoError(t, err)

	assert.Equal(t, 1, llm.callCount())
	assert.Contains(t, res.Text, "--- Page 1 ---")
	assert.Contains(t, res.Text, "scanned menu contents")
	require.NotEmpty(t, res.Records)
	assert.Contains(t, res.Records[0].Content, "scanned menu contents")
}

func TestPDFSizeCeiling(t *testing.T) {
	d := NewDispatcher(&fakeLLM{}, &fakeTranscriber{}, logger.NewNop(), 500, 1)

	big := bytes.Repeat([]byte("a"), 2*1024*1024)
	_, err := d.PDF(context.Background(), "huge.pdf", "t1", big)
	assert.ErrorIs(t, err, core.ErrExtraction)
}

func TestOCRTranscribesEveryPageInOrder(t *testing.T) {
	llm := &fakeLLM{out: "page text"}
	d := testDispatcher(llm, &fakeTranscriber{})
	d.rasterizer = &fakeRasterizer{pages: [][]byte{{1}, {2}, {3}}}

	out := d.ocrPDF(context.Background(), "scan.pdf", []byte("ignored"))

	assert.Equal(t, 3, llm.callCount())
	assert.Contains(t, out, "--- Page 1 ---")
	assert.Contains(t, out, "--- Page 2 ---")
	assert.Contains(t, out, "--- Page 3 ---")
	assert.Less(t, strings.Index(out, "--- Page 1 ---"), strings.Index(out, "--- Page 3 ---"))
}

func TestOCRFailedPageBecomesMarker(t *testing.T) {
	llm := &fakeLLM{out: "ok", pageErr: map[int]error{2: errors.New("model overloaded")}}
	d := testDispatcher(llm, &fakeTranscriber{})
	d.rasterizer = &fakeRasterizer{pages: [][]byte{{1}, {2}}}

	out := d.ocrPDF(context.Background(), "scan.pdf", nil)

	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "[Error processing page")
	assert.Contains(t, out, "model overloaded")
}

func TestOCRRasterizeFailureBecomesMarker(t *testing.T) {
	d := testDispatcher(&fakeLLM{}, &fakeTranscriber{})
	d.rasterizer = &fakeRasterizer{err: errors.New("pdftoppm not found")}

	out := d.ocrPDF(context.Background(), "scan.pdf", nil)
	require.Contains(t, out, "[Error rasterizing scan.pdf")
}
