package ingest

import (
	"context"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/minatolabs/kbchat/internal/core"
	"github.com/minatolabs/kbchat/internal/kb"
	"github.com/minatolabs/kbchat/internal/kb/extract"
	"github.com/minatolabs/kbchat/internal/models"
	"github.com/minatolabs/kbchat/internal/pkg/logger"
)

const jobQueueSize = 64

// processTimeout bounds one ingestion end to end, OCR and transcription
// included.
const processTimeout = 10 * time.Minute

type job struct {
	run  func(ctx context.Context) (*models.Source, error)
	done chan result
}

type result struct {
	src *models.Source
	err error
}

// Ingestor runs the full ingestion pipeline on a bounded worker pool: check
// the caller's allowance, extract, store the original bytes, register the
// source with its snapshot, refresh the aggregate, then count the upload.
// IngestFile and IngestURL block until their job completes so extraction
// failures surface to the caller that submitted them.
type Ingestor struct {
	db         core.DbClient
	obj        core.ObjectClient
	dispatcher *extract.Dispatcher
	registry   *kb.Registry
	aggregator *kb.Aggregator
	log        *logger.Logger
	bucket     string

	jobs chan job
}

func NewIngestor(
	db core.DbClient,
	obj core.ObjectClient,
	dispatcher *extract.Dispatcher,
	registry *kb.Registry,
	aggregator *kb.Aggregator,
	bucket string,
	log *logger.Logger,
) *Ingestor {
	return &Ingestor{
		db:         db,
		obj:        obj,
		dispatcher: dispatcher,
		registry:   registry,
		aggregator: aggregator,
		bucket:     bucket,
		log:        log.With("component", "ingestor"),
		jobs:       make(chan job, jobQueueSize),
	}
}

// Start launches the worker pool. Workers drain until ctx is cancelled.
func (i *Ingestor) Start(ctx context.Context, numWorkers int) {
	for w := 1; w <= numWorkers; w++ {
		go func(w int) {
			for {
				select {
				case <-ctx.Done():
					i.log.Info("ingest worker shutting down", "worker", w)
					return
				case j := <-i.jobs:
					procCtx, cancel := context.WithTimeout(context.Background(), processTimeout)
					src, err := j.run(procCtx)
					cancel()
					j.done <- result{src: src, err: err}
				}
			}
		}(w)
	}
}

// IngestFile ingests uploaded bytes under their original filename.
func (i *Ingestor) IngestFile(ctx context.Context, user *models.User, filename string, data []byte) (*models.Source, error) {
	return i.submit(ctx, func(procCtx context.Context) (*models.Source, error) {
		return i.processFile(procCtx, user, filename, data)
	})
}

// IngestURL ingests a web page, video link, or remote document by URL.
func (i *Ingestor) IngestURL(ctx context.Context, user *models.User, rawURL string) (*models.Source, error) {
	return i.submit(ctx, func(procCtx context.Context) (*models.Source, error) {
		return i.processURL(procCtx, user, rawURL)
	})
}

// submit enqueues a job and waits for its outcome. The queue applies
// backpressure when all workers are busy and the buffer is full.
func (i *Ingestor) submit(ctx context.Context, run func(context.Context) (*models.Source, error)) (*models.Source, error) {
	j := job{run: run, done: make(chan result, 1)}
	select {
	case i.jobs <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-j.done:
		return res.src, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (i *Ingestor) processFile(ctx context.Context, user *models.User, filename string, data []byte) (*models.Source, error) {
	if err := i.checkUploadAllowed(ctx, user); err != nil {
		return nil, err
	}
	tenantID, err := i.checkOwnership(user, filename)
	if err != nil {
		return nil, err
	}

	res, err := i.dispatcher.ExtractFile(ctx, filename, tenantID, data)
	if err != nil {
		return nil, err
	}
	kind, err := extract.KindForFilename(filename)
	if err != nil {
		return nil, err
	}

	storageURL, err := i.obj.UploadFile(ctx, i.bucket, objectKey(tenantID, filename), data, contentTypeFor(filename))
	if err != nil {
		return nil, fmt.Errorf("store original of %q: %w", filename, err)
	}

	src := models.Source{
		Identifier: filename,
		Kind:       kind,
		TenantID:   tenantID,
		StorageURL: storageURL,
	}
	return i.finish(ctx, user, src, res)
}

func (i *Ingestor) processURL(ctx context.Context, user *models.User, rawURL string) (*models.Source, error) {
	if err := i.checkUploadAllowed(ctx, user); err != nil {
		return nil, err
	}

	url := extract.NormalizeURL(rawURL)
	tenantID, err := i.checkOwnership(user, url)
	if err != nil {
		return nil, err
	}

	res, err := i.dispatcher.URL(ctx, url, tenantID)
	if err != nil {
		return nil, err
	}

	src := models.Source{
		Identifier: url,
		Kind:       models.KindURL,
		TenantID:   tenantID,
	}
	return i.finish(ctx, user, src, res)
}

// checkOwnership keeps a registered identifier with its original tenant. A
// re-ingest by another tenant's admin is rejected before any extraction or
// storage work; a superadmin re-ingest refreshes the source in place without
// moving it. The registry rejects a tenant change too, so a racing first
// ingest of the same name cannot slip past this check.
func (i *Ingestor) checkOwnership(user *models.User, identifier string) (string, error) {
	existing, err := i.registry.Get(identifier)
	if err != nil {
		return user.TenantID, nil // first registration
	}
	if existing.TenantID == user.TenantID {
		return user.TenantID, nil
	}
	if user.Role == models.RoleSuperAdmin {
		return existing.TenantID, nil
	}
	return "", fmt.Errorf("source %q belongs to another tenant: %w", identifier, core.ErrPermission)
}

// finish is the shared tail of both paths: register, refresh, count.
func (i *Ingestor) finish(ctx context.Context, user *models.User, src models.Source, res *extract.Result) (*models.Source, error) {
	snap := &models.Snapshot{Records: res.Records, Text: res.Text}
	if err := i.registry.Register(ctx, src, snap); err != nil {
		return nil, err
	}
	i.aggregator.Refresh(ctx)

	if err := i.db.IncrementUsage(ctx, user.ID, models.CounterUploads); err != nil {
		i.log.Warn("usage increment failed", "user", user.ID, "err", err)
	}

	registered, err := i.registry.Get(src.Identifier)
	if err != nil {
		return nil, err
	}
	i.log.Info("source ingested", "identifier", src.Identifier, "kind", src.Kind, "tenant", src.TenantID)
	return &registered, nil
}

// checkUploadAllowed enforces the role and metering rules: employees may not
// upload at all, and metered users stop at their document allowance.
func (i *Ingestor) checkUploadAllowed(ctx context.Context, user *models.User) error {
	if user.Role == models.RoleEmployee {
		return fmt.Errorf("employees may not upload documents: %w", core.ErrPermission)
	}

	limits, err := i.db.GetUsageLimits(ctx, user.ID)
	if err != nil {
		// a user without a metering row is unmetered
		i.log.Warn("no usage limits found", "user", user.ID, "err", err)
		return nil
	}
	if limits.IsUnlimited {
		return nil
	}
	if limits.UploadsUsed >= limits.UploadsLimit {
		return fmt.Errorf("document upload limit %d reached: %w", limits.UploadsLimit, core.ErrPermission)
	}
	return nil
}

func objectKey(tenantID, filename string) string {
	if tenantID == "" {
		return "shared/" + filename
	}
	return tenantID + "/" + filename
}

func contentTypeFor(filename string) string {
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(filename))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
