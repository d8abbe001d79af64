package kb

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/minatolabs/kbchat/internal/kb/extract"
	"github.com/minatolabs/kbchat/internal/models"
	"github.com/minatolabs/kbchat/internal/pkg/logger"
)

// SourceExtractor re-runs extraction for a registered source. Implemented by
// extract.Dispatcher.
type SourceExtractor interface {
	ExtractSource(ctx context.Context, src models.Source, data []byte) (*extract.Result, error)
}

// ByteLoader fetches the original uploaded bytes of a source, typically from
// object storage. URL sources have no stored bytes and return ErrNotFound.
type ByteLoader interface {
	LoadOriginal(ctx context.Context, src models.Source) ([]byte, error)
}

// Aggregate is one immutable build of the combined knowledge corpus. Readers
// hold it as a value; a refresh swaps in a new one and never mutates a
// published aggregate.
type Aggregate struct {
	Records     []models.Record
	RawText     string
	Columns     []string
	SourceCount int
	RefreshedAt time.Time
}

// baseColumns are always reported; Extra keys observed in records extend them.
var baseColumns = []string{"section", "content", "kind", "file", "url", "tenant_id"}

// Aggregator rebuilds the corpus from every active source. Refresh never
// fails: a source whose live bytes and snapshot are both gone contributes a
// labeled placeholder instead of aborting the build.
type Aggregator struct {
	reg       *Registry
	extractor SourceExtractor
	loader    ByteLoader
	log       *logger.Logger

	mu      sync.RWMutex
	current *Aggregate
}

func NewAggregator(reg *Registry, ex SourceExtractor, loader ByteLoader, log *logger.Logger) *Aggregator {
	return &Aggregator{
		reg:       reg,
		extractor: ex,
		loader:    loader,
		log:       log.With("component", "aggregator"),
		current:   &Aggregate{RefreshedAt: time.Now().UTC()},
	}
}

// Current returns the latest published aggregate.
func (a *Aggregator) Current() *Aggregate {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

// Refresh rebuilds the aggregate from the registry's active sources and
// publishes it. No active sources is a valid terminal state: the published
// aggregate is empty, not stale.
func (a *Aggregator) Refresh(ctx context.Context) *Aggregate {
	active := activeSources(a.reg.List())

	agg := &Aggregate{
		SourceCount: len(active),
		RefreshedAt: time.Now().UTC(),
	}

	var (
		raw   strings.Builder
		extra = map[string]struct{}{}
	)
	for _, src := range active {
		records, text := a.contribution(ctx, src)
		agg.Records = append(agg.Records, records...)
		for _, rec := range records {
			for k := range rec.Extra {
				extra[k] = struct{}{}
			}
		}
		raw.WriteString(fmt.Sprintf("=== source: %s ===\n%s\n", src.Identifier, strings.TrimSpace(text)))
	}
	agg.RawText = raw.String()
	agg.Columns = columnUnion(extra)

	a.mu.Lock()
	a.current = agg
	a.mu.Unlock()

	a.log.Info("aggregate refreshed", "sources", agg.SourceCount, "records", len(agg.Records))
	return agg
}

// contribution produces one source's records and text: live bytes first, the
// stored snapshot second, a bounded placeholder last.
func (a *Aggregator) contribution(ctx context.Context, src models.Source) ([]models.Record, string) {
	if data, err := a.loader.LoadOriginal(ctx, src); err == nil {
		res, err := a.extractor.ExtractSource(ctx, src, data)
		if err == nil {
			return res.Records, res.Text
		}
		a.log.Warn("re-extraction failed, trying snapshot", "identifier", src.Identifier, "err", err)
	}

	if snap, err := a.reg.Recover(src.Identifier); err == nil {
		return snap.Records, snap.Text
	}

	a.log.Warn("source unavailable, using placeholder", "identifier", src.Identifier)
	return placeholder(src), fmt.Sprintf("[Source %s is currently unavailable]", src.Identifier)
}

func placeholder(src models.Source) []models.Record {
	rec := models.Record{
		Section:  "Unavailable",
		Content:  fmt.Sprintf("[Source %s is currently unavailable]", src.Identifier),
		Kind:     src.Kind,
		TenantID: src.TenantID,
	}
	if src.Kind == models.KindURL {
		rec.URL = src.Identifier
	} else {
		rec.File = src.Identifier
	}
	return []models.Record{rec}
}

func activeSources(all []models.Source) []models.Source {
	out := make([]models.Source, 0, len(all))
	for _, s := range all {
		if s.Active {
			out = append(out, s)
		}
	}
	return out
}

func columnUnion(extra map[string]struct{}) []string {
	cols := append([]string(nil), baseColumns...)
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return append(cols, keys...)
}
