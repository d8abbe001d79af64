package core

import (
	"context"
	"io"

	"github.com/minatolabs/kbchat/internal/models"
)

// DbClient defines all persistence operations the services need. It abstracts
// Postgres so higher layers never depend on a specific DB. The registry treats
// it as a durable mirror, not as the registry itself.
type DbClient interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsersByTenant(ctx context.Context, tenantID string) ([]models.User, error)

	CreateTenant(ctx context.Context, t *models.Tenant) error
	GetTenantByID(ctx context.Context, id string) (*models.Tenant, error)

	UpsertSource(ctx context.Context, src *models.Source, snap *models.Snapshot) error
	SetSourceActive(ctx context.Context, identifier string, active bool) error
	DeleteSource(ctx context.Context, identifier string) error
	ListSources(ctx context.Context) ([]models.Source, error)
	GetSnapshot(ctx context.Context, identifier string) (*models.Snapshot, error)

	InsertChatLog(ctx context.Context, log *models.ChatLog) error
	ListChatLogs(ctx context.Context, tenantID, employeeID string) ([]models.ChatLog, error)

	GetUsageLimits(ctx context.Context, userID string) (*models.UsageLimits, error)
	IncrementUsage(ctx context.Context, userID string, kind models.CounterKind) error
	EmployeeUsage(ctx context.Context, tenantID string) ([]models.EmployeeUsage, error)
	DemoStats(ctx context.Context, tenantID string) (*models.DemoStats, error)

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage. The
// knowledge base keeps every uploaded original here so a source can be
// re-extracted after the upload request is long gone.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)

	GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}
