package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/minatolabs/kbchat/internal/core"
	"github.com/minatolabs/kbchat/internal/kb/segment"
	"github.com/minatolabs/kbchat/internal/models"
)

const fetchUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// strippedTags never contribute visible text.
var strippedTags = []string{"script", "style", "meta", "link", "noscript", "header", "footer", "nav"}

var (
	blankLinesRe = regexp.MustCompile(`\n{2,}`)
	spacesRe     = regexp.MustCompile(`[ \t]{2,}`)
)

// Fetcher downloads web pages with a standard user agent and a bounded
// timeout.
type Fetcher struct {
	client *http.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{client: &http.Client{Timeout: 15 * time.Second}}
}

// Get fetches the URL and returns the response body.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w: %v", url, core.ErrExternalService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: %w: status %d", url, core.ErrExternalService, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// NormalizeURL prepends https:// when the scheme is missing so URL
// identifiers stay stable between ingestion and lookup.
func NormalizeURL(url string) string {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "https://" + url
	}
	return url
}

// IsVideoURL reports whether a URL points at a known video host.
func IsVideoURL(url string) bool {
	return strings.Contains(url, "youtube.com") || strings.Contains(url, "youtu.be")
}

// isPDFURL checks the extension of the URL's path component, so query strings
// and fragments do not hide a document link.
func isPDFURL(rawURL string) bool {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return strings.EqualFold(path.Ext(rawURL), ".pdf")
	}
	return strings.EqualFold(path.Ext(strings.TrimRight(u.Path, "/")), ".pdf")
}

// URL extracts a web page. Video-hosting links dispatch to transcript
// extraction instead of HTML scraping; URLs ending in a document extension
// dispatch to the document extractor against the fetched bytes.
func (d *Dispatcher) URL(ctx context.Context, rawURL, tenantID string) (*Result, error) {
	url := NormalizeURL(rawURL)

	if IsVideoURL(url) {
		return d.videoTranscript(ctx, url, tenantID)
	}
	if isPDFURL(url) {
		data, err := d.fetcher.Get(ctx, url)
		if err != nil {
			return nil, err
		}
		res, err := d.PDF(ctx, url, tenantID, data)
		if err != nil {
			return nil, err
		}
		// a URL-derived document keeps its URL origin
		for i := range res.Records {
			res.Records[i].File = ""
			res.Records[i].URL = url
			res.Records[i].Kind = models.KindURL
		}
		return res, nil
	}

	body, err := d.fetcher.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	title, text, err := VisibleText(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w: %v", url, core.ErrExtraction, err)
	}

	full := fmt.Sprintf("=== URL: %s ===\n=== Title: %s ===\n\n%s", url, title, text)
	sections := segment.Split(text)
	records := recordsFromSections(sections, models.KindURL, "", url, tenantID)
	if len(records) == 0 && strings.TrimSpace(text) != "" {
		records = []models.Record{{
			Section:  segment.DefaultLabel,
			Content:  text,
			Kind:     models.KindURL,
			URL:      url,
			TenantID: tenantID,
		}}
	}

	return &Result{Records: records, Sections: sections, Text: full}, nil
}

// VisibleText strips non-content tags and collapses whitespace, returning the
// page title and its visible text.
func VisibleText(html []byte) (title, text string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(html)))
	if err != nil {
		return "", "", err
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = "Untitled"
	}

	doc.Find(strings.Join(strippedTags, ", ")).Remove()

	raw := doc.Find("body").Text()
	if strings.TrimSpace(raw) == "" {
		raw = doc.Text()
	}

	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		lines = append(lines, strings.TrimSpace(line))
	}
	text = strings.Join(lines, "\n")
	text = blankLinesRe.ReplaceAllString(text, "\n")
	text = spacesRe.ReplaceAllString(text, " ")
	return title, strings.TrimSpace(text), nil
}

// videoTranscript turns a video-hosting link into a single-section media
// record via the transcription capability.
func (d *Dispatcher) videoTranscript(ctx context.Context, url, tenantID string) (*Result, error) {
	transcript, err := d.transcriber.TranscribeURL(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("transcribe %s: %w", url, err)
	}

	record := models.Record{
		Section:  "Transcript",
		Content:  transcript,
		Kind:     models.KindMedia,
		URL:      url,
		TenantID: tenantID,
	}
	full := fmt.Sprintf("=== URL: %s ===\n=== Transcript ===\n\n%s", url, transcript)
	return &Result{
		Records:  dropEmpty([]models.Record{record}),
		Sections: []segment.Section{{Label: "Transcript", Content: transcript}},
		Text:     full,
	}, nil
}
