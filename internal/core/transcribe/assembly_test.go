package transcribe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minatolabs/kbchat/internal/core"
	"github.com/minatolabs/kbchat/internal/pkg/logger"
)

func testClient(baseURL string) *Client {
	c := NewClient("test-key", baseURL, logger.NewNop())
	c.pollInterval = time.Millisecond
	c.maxPolls = 10
	return c
}

func TestTranscribeUploadSubmitPoll(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/upload":
			json.NewEncoder(w).Encode(map[string]string{"upload_url": "https://cdn.example/a1"})
		case r.Method == http.MethodPost && r.URL.Path == "/transcript":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "https://cdn.example/a1", body["audio_url"])
			json.NewEncoder(w).Encode(map[string]string{"id": "job-1", "status": "queued"})
		case r.Method == http.MethodGet && r.URL.Path == "/transcript/job-1":
			if polls.Add(1) < 3 {
				json.NewEncoder(w).Encode(map[string]string{"status": "processing"})
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"status": "completed", "text": "hello world"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	out, err := testClient(srv.URL).Transcribe(context.Background(), []byte("media"), "call.mp3")
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
	assert.GreaterOrEqual(t, polls.Load(), int32(3))
}

func TestTranscribeJobError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/transcript":
			json.NewEncoder(w).Encode(map[string]string{"id": "job-2"})
		default:
			json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": "unsupported codec"})
		}
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).TranscribeURL(context.Background(), "https://cdn.example/b2")
	require.ErrorIs(t, err, core.ErrExternalService)
	assert.Contains(t, err.Error(), "unsupported codec")
}

func TestTranscribePollCeiling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/transcript":
			json.NewEncoder(w).Encode(map[string]string{"id": "job-3"})
		default:
			json.NewEncoder(w).Encode(map[string]string{"status": "processing"})
		}
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).TranscribeURL(context.Background(), "https://cdn.example/c3")
	assert.ErrorIs(t, err, core.ErrExternalService)
}

func TestTranscribeHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).TranscribeURL(context.Background(), "https://cdn.example/d4")
	assert.ErrorIs(t, err, core.ErrExternalService)
}
