package extract

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minatolabs/kbchat/internal/core"
	"github.com/minatolabs/kbchat/internal/models"
	"github.com/minatolabs/kbchat/internal/pkg/logger"
)

func TestMediaTranscript(t *testing.T) {
	tr := &fakeTranscriber{out: "welcome to the weekly standup"}
	d := testDispatcher(&fakeLLM{}, tr)

	res, err := d.Media(context.Background(), "standup.mp3", "t1", []byte("audio bytes"))
	require.NoError(t, err)

	assert.Equal(t, "standup.mp3", tr.gotFilename)
	require.Len(t, res.Records, 1)
	rec := res.Records[0]
	assert.Equal(t, "Transcript", rec.Section)
	assert.Equal(t, "welcome to the weekly standup", rec.Content)
	assert.Equal(t, models.KindMedia, rec.Kind)
	assert.Equal(t, "standup.mp3", rec.File)
	assert.Contains(t, res.Text, "=== File: standup.mp3 ===")
}

func TestMediaSizeCeiling(t *testing.T) {
	d := NewDispatcher(&fakeLLM{}, &fakeTranscriber{out: "never reached"}, logger.NewNop(), 1, 10)

	big := bytes.Repeat([]byte("a"), 2*1024*1024)
	_, err := d.Media(context.Background(), "huge.mp4", "t1", big)
	assert.ErrorIs(t, err, core.ErrExtraction)
}

func TestMediaEmptyTranscriptDropped(t *testing.T) {
	d := testDispatcher(&fakeLLM{}, &fakeTranscriber{out: "   "})

	res, err := d.Media(context.Background(), "silent.wav", "t1", []byte("x"))
	require.NoError(t, err)
	assert.Empty(t, res.Records)
}
