package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/minatolabs/kbchat/internal/core"
	"github.com/minatolabs/kbchat/internal/kb"
	"github.com/minatolabs/kbchat/internal/models"
)

// ObjectLoader serves a source's original bytes from object storage. URL
// sources have nothing stored; returning no bytes and no error lets the
// aggregator re-fetch them through the URL extractor.
type ObjectLoader struct {
	obj core.ObjectClient
}

var _ kb.ByteLoader = (*ObjectLoader)(nil)

func NewObjectLoader(obj core.ObjectClient) *ObjectLoader {
	return &ObjectLoader{obj: obj}
}

func (l *ObjectLoader) LoadOriginal(ctx context.Context, src models.Source) ([]byte, error) {
	if src.Kind == models.KindURL {
		return nil, nil
	}
	if src.StorageURL == "" {
		return nil, fmt.Errorf("no stored bytes for %q: %w", src.Identifier, core.ErrNotFound)
	}
	bucket, key := parseS3URL(src.StorageURL)
	return l.obj.GetFile(ctx, bucket, key)
}

// parseS3URL splits a virtual-hosted-style S3 URL into bucket and key.
// Example: https://my-bucket.s3.us-east-2.amazonaws.com/path/to/file.pdf
func parseS3URL(u string) (bucket, key string) {
	hostPath := strings.SplitN(strings.TrimPrefix(u, "https://"), "/", 2)
	host := hostPath[0]
	if len(hostPath) == 2 {
		key = hostPath[1]
	}
	if idx := strings.Index(host, "."); idx > 0 {
		bucket = host[:idx]
	}
	return bucket, key
}
