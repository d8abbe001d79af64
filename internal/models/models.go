package models

import (
	"time"
)

// SourceKind classifies an ingested artifact by the extractor that produced it.
type SourceKind string

const (
	KindSpreadsheet SourceKind = "spreadsheet"
	KindDocument    SourceKind = "document"
	KindText        SourceKind = "text"
	KindURL         SourceKind = "url"
	KindMedia       SourceKind = "media"
)

// Record is one atomic unit of extracted knowledge. Exactly one of File or
// URL is set, never both. TenantID is empty only for legacy, ungrouped data.
type Record struct {
	Section  string            `db:"section" json:"section"`
	Content  string            `db:"content" json:"content"`
	Kind     SourceKind        `db:"kind" json:"kind"`
	File     string            `db:"file_origin" json:"file,omitempty"`
	URL      string            `db:"url_origin" json:"url,omitempty"`
	TenantID string            `db:"tenant_id" json:"tenant_id,omitempty"`
	Extra    map[string]string `db:"-" json:"extra,omitempty"` // diagnostics only, never required
}

// Origin returns whichever of the two origin fields is set.
func (r Record) Origin() string {
	if r.URL != "" {
		return r.URL
	}
	return r.File
}

// Source is one ingested artifact (file or URL), identified by a stable name.
type Source struct {
	Identifier string     `db:"identifier" json:"identifier"`
	Kind       SourceKind `db:"kind" json:"kind"`
	TenantID   string     `db:"tenant_id" json:"tenant_id,omitempty"`
	IngestedAt time.Time  `db:"ingested_at" json:"ingested_at"`
	Active     bool       `db:"active" json:"active"`
	StorageURL string     `db:"storage_url" json:"storage_url,omitempty"` // object-store location of the original bytes, empty for URL sources
}

// Snapshot is the full extraction output retained per source so the knowledge
// base can be rebuilt even after the live bytes disappear.
type Snapshot struct {
	Records []Record `json:"records"`
	Text    string   `json:"text"`
}

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Name         string    `db:"name" json:"name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"` // superadmin | admin | employee
	TenantID     string    `db:"tenant_id" json:"tenant_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

const (
	RoleSuperAdmin = "superadmin"
	RoleAdmin      = "admin"
	RoleEmployee   = "employee"
)

// Tenant scopes Source visibility; the only multi-tenancy mechanism.
type Tenant struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ChatLog is one answered question, kept for the admin history view.
type ChatLog struct {
	ID             string    `db:"id" json:"id"`
	UserMessage    string    `db:"user_message" json:"user_message"`
	BotResponse    string    `db:"bot_response" json:"bot_response"`
	Category       string    `db:"category" json:"category"`
	Sentiment      string    `db:"sentiment" json:"sentiment"`
	EmployeeID     string    `db:"employee_id" json:"employee_id,omitempty"`
	EmployeeName   string    `db:"employee_name" json:"employee_name,omitempty"`
	SourceDocument string    `db:"source_document" json:"source_document,omitempty"`
	TenantID       string    `db:"tenant_id" json:"tenant_id,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// CounterKind is the closed set of usage counters. Persistence maps each kind
// to a fixed statement; caller-controlled strings never reach SQL.
type CounterKind string

const (
	CounterUploads   CounterKind = "document_uploads_used"
	CounterQuestions CounterKind = "questions_used"
)

// UsageLimits is one user's metering row.
type UsageLimits struct {
	UserID         string `db:"user_id" json:"user_id"`
	UploadsUsed    int    `db:"document_uploads_used" json:"document_uploads_used"`
	UploadsLimit   int    `db:"document_uploads_limit" json:"document_uploads_limit"`
	QuestionsUsed  int    `db:"questions_used" json:"questions_used"`
	QuestionsLimit int    `db:"questions_limit" json:"questions_limit"`
	IsUnlimited    bool   `db:"is_unlimited" json:"is_unlimited"`
}

// UsageCheck is the answer to "may this user perform one more <kind>".
type UsageCheck struct {
	Allowed     bool `json:"allowed"`
	Remaining   int  `json:"remaining"`
	Limit       int  `json:"limit"`
	IsUnlimited bool `json:"is_unlimited"`
}

// EmployeeUsage aggregates one employee's activity for the admin view.
type EmployeeUsage struct {
	EmployeeID   string     `db:"employee_id" json:"employee_id"`
	EmployeeName string     `db:"employee_name" json:"employee_name"`
	MessageCount int        `db:"message_count" json:"message_count"`
	LastActivity *time.Time `db:"last_activity" json:"last_activity,omitempty"`
}

// DemoStats are the global (or per-tenant) usage totals.
type DemoStats struct {
	TotalUsers        int `json:"total_users"`
	ActiveUsers       int `json:"active_users"`
	TotalDocuments    int `json:"total_documents"`
	TotalQuestions    int `json:"total_questions"`
	LimitReachedUsers int `json:"limit_reached_users"`
	TotalTenants      int `json:"total_tenants,omitempty"`
}
