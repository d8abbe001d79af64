package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/minatolabs/kbchat/internal/core"
	"github.com/minatolabs/kbchat/internal/models"
)

// fakeDB implements core.DbClient for ingest tests: sources, snapshots, and
// usage counters; everything else is a no-op.
type fakeDB struct {
	mu         sync.Mutex
	sources    map[string]models.Source
	snapshots  map[string]*models.Snapshot
	limits     map[string]*models.UsageLimits
	increments map[models.CounterKind]int
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		sources:    make(map[string]models.Source),
		snapshots:  make(map[string]*models.Snapshot),
		limits:     make(map[string]*models.UsageLimits),
		increments: make(map[models.CounterKind]int),
	}
}

func (f *fakeDB) UpsertSource(ctx context.Context, src *models.Source, snap *models.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources[src.Identifier] = *src
	f.snapshots[src.Identifier] = snap
	return nil
}

func (f *fakeDB) SetSourceActive(ctx context.Context, identifier string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	src, ok := f.sources[identifier]
	if !ok {
		return core.ErrNotFound
	}
	src.Active = active
	f.sources[identifier] = src
	return nil
}

func (f *fakeDB) DeleteSource(ctx context.Context, identifier string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sources, identifier)
	delete(f.snapshots, identifier)
	return nil
}

func (f *fakeDB) ListSources(ctx context.Context) ([]models.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Source, 0, len(f.sources))
	for _, s := range f.sources {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeDB) GetSnapshot(ctx context.Context, identifier string) (*models.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.snapshots[identifier]
	if !ok {
		return nil, core.ErrNotFound
	}
	return snap, nil
}

func (f *fakeDB) GetUsageLimits(ctx context.Context, userID string) (*models.UsageLimits, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	limits, ok := f.limits[userID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return limits, nil
}

func (f *fakeDB) IncrementUsage(ctx context.Context, userID string, kind models.CounterKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.increments[kind]++
	return nil
}

func (f *fakeDB) CreateUser(ctx context.Context, user *models.User) error { return nil }
func (f *fakeDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, core.ErrNotFound
}
func (f *fakeDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return nil, core.ErrNotFound
}
func (f *fakeDB) ListUsersByTenant(ctx context.Context, tenantID string) ([]models.User, error) {
	return nil, nil
}
func (f *fakeDB) CreateTenant(ctx context.Context, t *models.Tenant) error { return nil }
func (f *fakeDB) GetTenantByID(ctx context.Context, id string) (*models.Tenant, error) {
	return nil, core.ErrNotFound
}
func (f *fakeDB) InsertChatLog(ctx context.Context, log *models.ChatLog) error { return nil }
func (f *fakeDB) ListChatLogs(ctx context.Context, tenantID, employeeID string) ([]models.ChatLog, error) {
	return nil, nil
}
func (f *fakeDB) EmployeeUsage(ctx context.Context, tenantID string) ([]models.EmployeeUsage, error) {
	return nil, nil
}
func (f *fakeDB) DemoStats(ctx context.Context, tenantID string) (*models.DemoStats, error) {
	return nil, nil
}
func (f *fakeDB) Close() error { return nil }

// fakeObjects is an in-memory core.ObjectClient keyed by "bucket/key".
type fakeObjects struct {
	mu     sync.Mutex
	stored map[string][]byte
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{stored: make(map[string][]byte)}
}

func (f *fakeObjects) UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored[key] = data
	return fmt.Sprintf("https://%s.s3.us-east-2.amazonaws.com/%s", bucket, key), nil
}

func (f *fakeObjects) DeleteFile(ctx context.Context, bucket, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.stored, key)
	return nil
}

func (f *fakeObjects) GetFile(ctx context.Context, bucket, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.stored[key]
	if !ok {
		return nil, core.ErrNotFound
	}
	return data, nil
}

func (f *fakeObjects) GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	data, err := f.GetFile(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
