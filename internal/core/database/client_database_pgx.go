package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/minatolabs/kbchat/internal/config"
	"github.com/minatolabs/kbchat/internal/core"
	"github.com/minatolabs/kbchat/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

var _ core.DbClient = (*DatabaseClient)(nil)

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (core.DbClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// users

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	const q = `
		INSERT INTO users (id, email, name, password_hash, role, tenant_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), COALESCE($7, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		user.ID, user.Email, user.Name, user.PasswordHash, user.Role, user.TenantID, user.CreatedAt)
	return err
}

const userColumns = `id, email, name, password_hash, role, COALESCE(tenant_id, ''), created_at`

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return c.scanUser(c.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (c *DatabaseClient) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return c.scanUser(c.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (c *DatabaseClient) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.TenantID, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *DatabaseClient) ListUsersByTenant(ctx context.Context, tenantID string) ([]models.User, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id = $1 ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.TenantID, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// tenants

func (c *DatabaseClient) CreateTenant(ctx context.Context, t *models.Tenant) error {
	if t == nil {
		return errors.New("nil tenant")
	}
	const q = `INSERT INTO tenants (id, name, created_at) VALUES ($1, $2, COALESCE($3, now()))`
	_, err := c.db.ExecContext(ctx, q, t.ID, t.Name, t.CreatedAt)
	return err
}

func (c *DatabaseClient) GetTenantByID(ctx context.Context, id string) (*models.Tenant, error) {
	var t models.Tenant
	err := c.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM tenants WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tenant %q: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// sources; the extraction snapshot rides along as a jsonb column so one row
// holds everything needed to rebuild a source

func (c *DatabaseClient) UpsertSource(ctx context.Context, src *models.Source, snap *models.Snapshot) error {
	if src == nil {
		return errors.New("nil source")
	}
	blob, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	const q = `
		INSERT INTO sources (identifier, kind, tenant_id, ingested_at, active, storage_url, snapshot)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)
		ON CONFLICT (identifier) DO UPDATE SET
			kind = EXCLUDED.kind,
			ingested_at = EXCLUDED.ingested_at,
			storage_url = EXCLUDED.storage_url,
			snapshot = EXCLUDED.snapshot
	`
	_, err = c.db.ExecContext(ctx, q,
		src.Identifier, src.Kind, src.TenantID, src.IngestedAt, src.Active, src.StorageURL, blob)
	return err
}

func (c *DatabaseClient) SetSourceActive(ctx context.Context, identifier string, active bool) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE sources SET active = $2 WHERE identifier = $1`, identifier, active)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("source %q: %w", identifier, core.ErrNotFound)
	}
	return nil
}

func (c *DatabaseClient) DeleteSource(ctx context.Context, identifier string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM sources WHERE identifier = $1`, identifier)
	return err
}

func (c *DatabaseClient) ListSources(ctx context.Context) ([]models.Source, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT identifier, kind, COALESCE(tenant_id, ''), ingested_at, active, COALESCE(storage_url, '')
		FROM sources ORDER BY ingested_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Source
	for rows.Next() {
		var s models.Source
		if err := rows.Scan(&s.Identifier, &s.Kind, &s.TenantID, &s.IngestedAt, &s.Active, &s.StorageURL); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) GetSnapshot(ctx context.Context, identifier string) (*models.Snapshot, error) {
	var blob []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT snapshot FROM sources WHERE identifier = $1`, identifier).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot for %q: %w", identifier, core.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var snap models.Snapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot of %q: %w", identifier, err)
	}
	return &snap, nil
}

// chat logs

func (c *DatabaseClient) InsertChatLog(ctx context.Context, log *models.ChatLog) error {
	if log == nil {
		return errors.New("nil chat log")
	}
	const q = `
		INSERT INTO chat_logs
			(id, user_message, bot_response, category, sentiment,
			 employee_id, employee_name, source_document, tenant_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, NULLIF($9, ''), COALESCE($10, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		log.ID, log.UserMessage, log.BotResponse, log.Category, log.Sentiment,
		log.EmployeeID, log.EmployeeName, log.SourceDocument, log.TenantID, log.CreatedAt)
	return err
}

func (c *DatabaseClient) ListChatLogs(ctx context.Context, tenantID, employeeID string) ([]models.ChatLog, error) {
	const q = `
		SELECT id, user_message, bot_response, category, sentiment,
		       COALESCE(employee_id, ''), employee_name, source_document, COALESCE(tenant_id, ''), created_at
		FROM chat_logs
		WHERE ($1 = '' OR tenant_id = $1)
		  AND ($2 = '' OR employee_id = $2)
		ORDER BY created_at DESC
		LIMIT 500
	`
	rows, err := c.db.QueryContext(ctx, q, tenantID, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ChatLog
	for rows.Next() {
		var l models.ChatLog
		if err := rows.Scan(&l.ID, &l.UserMessage, &l.BotResponse, &l.Category, &l.Sentiment,
			&l.EmployeeID, &l.EmployeeName, &l.SourceDocument, &l.TenantID, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// usage metering

func (c *DatabaseClient) GetUsageLimits(ctx context.Context, userID string) (*models.UsageLimits, error) {
	var u models.UsageLimits
	err := c.db.QueryRowContext(ctx, `
		SELECT user_id, document_uploads_used, document_uploads_limit,
		       questions_used, questions_limit, is_unlimited
		FROM usage_limits WHERE user_id = $1`, userID).
		Scan(&u.UserID, &u.UploadsUsed, &u.UploadsLimit, &u.QuestionsUsed, &u.QuestionsLimit, &u.IsUnlimited)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("usage limits for %q: %w", userID, core.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// counterStatements maps each CounterKind to a fixed statement. The kind is
// a closed enum; user input never selects a column name.
var counterStatements = map[models.CounterKind]string{
	models.CounterUploads: `
		INSERT INTO usage_limits (user_id, document_uploads_used) VALUES ($1, 1)
		ON CONFLICT (user_id) DO UPDATE SET document_uploads_used = usage_limits.document_uploads_used + 1`,
	models.CounterQuestions: `
		INSERT INTO usage_limits (user_id, questions_used) VALUES ($1, 1)
		ON CONFLICT (user_id) DO UPDATE SET questions_used = usage_limits.questions_used + 1`,
}

func (c *DatabaseClient) IncrementUsage(ctx context.Context, userID string, kind models.CounterKind) error {
	q, ok := counterStatements[kind]
	if !ok {
		return fmt.Errorf("unknown counter kind %q", kind)
	}
	_, err := c.db.ExecContext(ctx, q, userID)
	return err
}

func (c *DatabaseClient) EmployeeUsage(ctx context.Context, tenantID string) ([]models.EmployeeUsage, error) {
	const q = `
		SELECT employee_id, MAX(employee_name), COUNT(*), MAX(created_at)
		FROM chat_logs
		WHERE employee_id IS NOT NULL
		  AND ($1 = '' OR tenant_id = $1)
		GROUP BY employee_id
		ORDER BY COUNT(*) DESC
	`
	rows, err := c.db.QueryContext(ctx, q, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.EmployeeUsage
	for rows.Next() {
		var u models.EmployeeUsage
		if err := rows.Scan(&u.EmployeeID, &u.EmployeeName, &u.MessageCount, &u.LastActivity); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) DemoStats(ctx context.Context, tenantID string) (*models.DemoStats, error) {
	var s models.DemoStats
	const q = `
		SELECT
			(SELECT COUNT(*) FROM users WHERE $1 = '' OR tenant_id = $1),
			(SELECT COUNT(DISTINCT employee_id) FROM chat_logs WHERE employee_id IS NOT NULL AND ($1 = '' OR tenant_id = $1)),
			(SELECT COUNT(*) FROM sources WHERE $1 = '' OR tenant_id = $1),
			(SELECT COALESCE(SUM(questions_used), 0) FROM usage_limits),
			(SELECT COUNT(*) FROM usage_limits
				WHERE NOT is_unlimited
				  AND (document_uploads_used >= document_uploads_limit
				       OR questions_used >= questions_limit)),
			(SELECT COUNT(*) FROM tenants)
	`
	err := c.db.QueryRowContext(ctx, q, tenantID).Scan(
		&s.TotalUsers, &s.ActiveUsers, &s.TotalDocuments,
		&s.TotalQuestions, &s.LimitReachedUsers, &s.TotalTenants)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
