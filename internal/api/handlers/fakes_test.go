package handlers

import (
	"context"
	"net/http"

	"github.com/minatolabs/kbchat/internal/core"
	"github.com/minatolabs/kbchat/internal/kb/extract"
	"github.com/minatolabs/kbchat/internal/models"

	"github.com/minatolabs/kbchat/internal/api/middlewares"
)

// fakeDB is an in-memory DbClient covering what the handler tests exercise.
type fakeDB struct {
	users    map[string]*models.User
	tenants  map[string]*models.Tenant
	chatLogs []models.ChatLog
	limits   map[string]*models.UsageLimits
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		users:   make(map[string]*models.User),
		tenants: make(map[string]*models.Tenant),
		limits:  make(map[string]*models.UsageLimits),
	}
}

func (f *fakeDB) CreateUser(ctx context.Context, user *models.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return u, nil
}

func (f *fakeDB) ListUsersByTenant(ctx context.Context, tenantID string) ([]models.User, error) {
	var out []models.User
	for _, u := range f.users {
		if u.TenantID == tenantID {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeDB) CreateTenant(ctx context.Context, t *models.Tenant) error {
	if _, exists := f.tenants[t.ID]; exists {
		return core.ErrPermission
	}
	f.tenants[t.ID] = t
	return nil
}

func (f *fakeDB) GetTenantByID(ctx context.Context, id string) (*models.Tenant, error) {
	t, ok := f.tenants[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return t, nil
}

func (f *fakeDB) UpsertSource(ctx context.Context, src *models.Source, snap *models.Snapshot) error {
	return nil
}
func (f *fakeDB) SetSourceActive(ctx context.Context, identifier string, active bool) error {
	return nil
}
func (f *fakeDB) DeleteSource(ctx context.Context, identifier string) error { return nil }
func (f *fakeDB) ListSources(ctx context.Context) ([]models.Source, error)  { return nil, nil }
func (f *fakeDB) GetSnapshot(ctx context.Context, identifier string) (*models.Snapshot, error) {
	return nil, core.ErrNotFound
}

func (f *fakeDB) InsertChatLog(ctx context.Context, log *models.ChatLog) error {
	f.chatLogs = append(f.chatLogs, *log)
	return nil
}

func (f *fakeDB) ListChatLogs(ctx context.Context, tenantID, employeeID string) ([]models.ChatLog, error) {
	return f.chatLogs, nil
}

func (f *fakeDB) GetUsageLimits(ctx context.Context, userID string) (*models.UsageLimits, error) {
	l, ok := f.limits[userID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return l, nil
}

func (f *fakeDB) IncrementUsage(ctx context.Context, userID string, kind models.CounterKind) error {
	return nil
}
func (f *fakeDB) EmployeeUsage(ctx context.Context, tenantID string) ([]models.EmployeeUsage, error) {
	return nil, nil
}
func (f *fakeDB) DemoStats(ctx context.Context, tenantID string) (*models.DemoStats, error) {
	return nil, nil
}
func (f *fakeDB) Close() error { return nil }

// fakeLLM replays scripted responses in order.
type fakeLLM struct {
	responses []string
	err       error
	calls     int
}

func (f *fakeLLM) Generate(ctx context.Context, system, user string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.calls >= len(f.responses) {
		return "", nil
	}
	out := f.responses[f.calls]
	f.calls++
	return out, nil
}

func (f *fakeLLM) GenerateWithImages(ctx context.Context, prompt string, images [][]byte) (string, error) {
	return "", nil
}

// noLoader reports every source's live bytes as gone, so the aggregator falls
// back to registry snapshots.
type noLoader struct{}

func (noLoader) LoadOriginal(ctx context.Context, src models.Source) ([]byte, error) {
	return nil, core.ErrNotFound
}

// noExtractor is never reached when noLoader is in use.
type noExtractor struct{}

func (noExtractor) ExtractSource(ctx context.Context, src models.Source, data []byte) (*extract.Result, error) {
	return nil, core.ErrNotFound
}

// asUser injects an authenticated identity the way the JWT middleware does.
func asUser(r *http.Request, user *models.User) *http.Request {
	return r.WithContext(middlewares.WithUser(r.Context(), user))
}
