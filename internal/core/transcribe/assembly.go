package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/minatolabs/kbchat/internal/core"
	"github.com/minatolabs/kbchat/internal/pkg/logger"
)

const (
	defaultPollInterval = 3 * time.Second
	defaultMaxPolls     = 200 // 10 minutes of polling before giving up
)

// Client talks to an AssemblyAI-style transcription API: upload the media (or
// hand over a URL), submit a transcript job, then poll until it finishes. The
// poll loop has a hard ceiling so a stuck remote job surfaces as
// ErrExternalService instead of hanging a worker forever.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	log     *logger.Logger

	pollInterval time.Duration
	maxPolls     int
}

var _ core.Transcriber = (*Client)(nil)

func NewClient(apiKey, baseURL string, log *logger.Logger) *Client {
	return &Client{
		apiKey:       apiKey,
		baseURL:      baseURL,
		http:         &http.Client{Timeout: 5 * time.Minute},
		log:          log.With("component", "transcribe"),
		pollInterval: defaultPollInterval,
		maxPolls:     defaultMaxPolls,
	}
}

func (c *Client) Transcribe(ctx context.Context, media []byte, filename string) (string, error) {
	uploadURL, err := c.upload(ctx, media)
	if err != nil {
		return "", err
	}
	c.log.Info("media uploaded for transcription", "file", filename, "bytes", len(media))
	return c.TranscribeURL(ctx, uploadURL)
}

func (c *Client) TranscribeURL(ctx context.Context, mediaURL string) (string, error) {
	id, err := c.submit(ctx, mediaURL)
	if err != nil {
		return "", err
	}
	return c.poll(ctx, id)
}

// upload pushes raw media bytes and returns the temporary URL the API files
// them under.
func (c *Client) upload(ctx context.Context, media []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", bytes.NewReader(media))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	var out struct {
		UploadURL string `json:"upload_url"`
	}
	if err := c.do(req, &out); err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}
	return out.UploadURL, nil
}

func (c *Client) submit(ctx context.Context, mediaURL string) (string, error) {
	body, err := json.Marshal(map[string]string{"audio_url": mediaURL})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcript", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(req, &out); err != nil {
		return "", fmt.Errorf("submit transcript job: %w", err)
	}
	return out.ID, nil
}

func (c *Client) poll(ctx context.Context, id string) (string, error) {
	for try := 0; try < c.maxPolls; try++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transcript/"+id, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("Authorization", c.apiKey)

		var out struct {
			Status string `json:"status"`
			Text   string `json:"text"`
			Error  string `json:"error"`
		}
		if err := c.do(req, &out); err != nil {
			return "", fmt.Errorf("poll transcript %s: %w", id, err)
		}

		switch out.Status {
		case "completed":
			return out.Text, nil
		case "error":
			return "", fmt.Errorf("transcript %s: %w: %s", id, core.ErrExternalService, out.Error)
		}
	}
	return "", fmt.Errorf("transcript %s did not finish after %d polls: %w", id, c.maxPolls, core.ErrExternalService)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrExternalService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", core.ErrExternalService, resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
