package kb

import (
	"context"

	"github.com/minatolabs/kbchat/internal/core"
	"github.com/minatolabs/kbchat/internal/kb/extract"
	"github.com/minatolabs/kbchat/internal/models"
	"github.com/minatolabs/kbchat/internal/pkg/logger"
)

// memDB is an in-memory DbClient covering what the registry needs. The
// remaining interface methods are no-ops.
type memDB struct {
	sources   map[string]models.Source
	snapshots map[string]*models.Snapshot
	upserts   int
}

func newMemDB() *memDB {
	return &memDB{
		sources:   make(map[string]models.Source),
		snapshots: make(map[string]*models.Snapshot),
	}
}

func (m *memDB) UpsertSource(ctx context.Context, src *models.Source, snap *models.Snapshot) error {
	m.upserts++
	m.sources[src.Identifier] = *src
	m.snapshots[src.Identifier] = snap
	return nil
}

func (m *memDB) SetSourceActive(ctx context.Context, identifier string, active bool) error {
	src, ok := m.sources[identifier]
	if !ok {
		return core.ErrNotFound
	}
	src.Active = active
	m.sources[identifier] = src
	return nil
}

func (m *memDB) DeleteSource(ctx context.Context, identifier string) error {
	delete(m.sources, identifier)
	delete(m.snapshots, identifier)
	return nil
}

func (m *memDB) ListSources(ctx context.Context) ([]models.Source, error) {
	out := make([]models.Source, 0, len(m.sources))
	for _, s := range m.sources {
		out = append(out, s)
	}
	return out, nil
}

func (m *memDB) GetSnapshot(ctx context.Context, identifier string) (*models.Snapshot, error) {
	snap, ok := m.snapshots[identifier]
	if !ok {
		return nil, core.ErrNotFound
	}
	return snap, nil
}

func (m *memDB) CreateUser(ctx context.Context, user *models.User) error { return nil }
func (m *memDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, core.ErrNotFound
}
func (m *memDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return nil, core.ErrNotFound
}
func (m *memDB) ListUsersByTenant(ctx context.Context, tenantID string) ([]models.User, error) {
	return nil, nil
}
func (m *memDB) CreateTenant(ctx context.Context, t *models.Tenant) error { return nil }
func (m *memDB) GetTenantByID(ctx context.Context, id string) (*models.Tenant, error) {
	return nil, core.ErrNotFound
}
func (m *memDB) InsertChatLog(ctx context.Context, log *models.ChatLog) error { return nil }
func (m *memDB) ListChatLogs(ctx context.Context, tenantID, employeeID string) ([]models.ChatLog, error) {
	return nil, nil
}
func (m *memDB) GetUsageLimits(ctx context.Context, userID string) (*models.UsageLimits, error) {
	return nil, core.ErrNotFound
}
func (m *memDB) IncrementUsage(ctx context.Context, userID string, kind models.CounterKind) error {
	return nil
}
func (m *memDB) EmployeeUsage(ctx context.Context, tenantID string) ([]models.EmployeeUsage, error) {
	return nil, nil
}
func (m *memDB) DemoStats(ctx context.Context, tenantID string) (*models.DemoStats, error) {
	return nil, nil
}
func (m *memDB) Close() error { return nil }

// memLoader serves live bytes for a subset of sources.
type memLoader struct {
	bytes map[string][]byte
}

func (l *memLoader) LoadOriginal(ctx context.Context, src models.Source) ([]byte, error) {
	data, ok := l.bytes[src.Identifier]
	if !ok {
		return nil, core.ErrNotFound
	}
	return data, nil
}

// stubExtractor returns one record per source built from the loaded bytes.
type stubExtractor struct {
	err error
}

func (s *stubExtractor) ExtractSource(ctx context.Context, src models.Source, data []byte) (*extract.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	rec := models.Record{
		Section:  "General",
		Content:  string(data),
		Kind:     src.Kind,
		TenantID: src.TenantID,
	}
	if src.Kind == models.KindURL {
		rec.URL = src.Identifier
	} else {
		rec.File = src.Identifier
	}
	return &extract.Result{
		Records: []models.Record{rec},
		Text:    string(data),
	}, nil
}

func testRegistry() (*Registry, *memDB) {
	db := newMemDB()
	return NewRegistry(db, logger.NewNop()), db
}

func fileSource(id, tenant string) models.Source {
	return models.Source{Identifier: id, Kind: models.KindText, TenantID: tenant}
}

func snapshotOf(records ...models.Record) *models.Snapshot {
	text := ""
	for _, r := range records {
		text += r.Content + "\n"
	}
	return &models.Snapshot{Records: records, Text: text}
}
