package kb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/minatolabs/kbchat/internal/core"
	"github.com/minatolabs/kbchat/internal/models"
	"github.com/minatolabs/kbchat/internal/pkg/logger"
)

// Registry is the in-memory source-of-truth for ingested sources and their
// snapshots. The database is a durable mirror: every mutation writes through,
// and Rehydrate rebuilds the registry from it on startup. All methods are
// safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	db  core.DbClient
	log *logger.Logger

	sources   map[string]*models.Source
	snapshots map[string]*models.Snapshot
	order     []string            // identifiers in first-registration order
	byTenant  map[string][]string // tenant id -> identifiers, insertion order
}

func NewRegistry(db core.DbClient, log *logger.Logger) *Registry {
	return &Registry{
		db:        db,
		log:       log.With("component", "registry"),
		sources:   make(map[string]*models.Source),
		snapshots: make(map[string]*models.Snapshot),
		byTenant:  make(map[string][]string),
	}
}

// Rehydrate loads every persisted source and its snapshot into memory. Called
// once at startup before the first refresh.
func (r *Registry) Rehydrate(ctx context.Context) error {
	sources, err := r.db.ListSources(ctx)
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range sources {
		src := sources[i]
		r.insertLocked(&src)
		snap, err := r.db.GetSnapshot(ctx, src.Identifier)
		if err != nil {
			r.log.Warn("snapshot missing on rehydrate", "identifier", src.Identifier, "err", err)
			continue
		}
		r.snapshots[src.Identifier] = snap
	}
	r.log.Info("registry rehydrated", "sources", len(r.sources))
	return nil
}

// Register records a source and its extraction snapshot. Re-registering an
// existing identifier replaces the snapshot and metadata but preserves the
// active flag; only a first registration starts out active. An identifier
// stays with the tenant that first registered it: a re-registration under a
// different tenant id is rejected.
func (r *Registry) Register(ctx context.Context, src models.Source, snap *models.Snapshot) error {
	r.mu.Lock()
	if existing, ok := r.sources[src.Identifier]; ok {
		if existing.TenantID != src.TenantID {
			r.mu.Unlock()
			return fmt.Errorf("source %q belongs to tenant %q: %w", src.Identifier, existing.TenantID, core.ErrPermission)
		}
		src.Active = existing.Active
		src.IngestedAt = time.Now().UTC()
		*existing = src
	} else {
		src.Active = true
		if src.IngestedAt.IsZero() {
			src.IngestedAt = time.Now().UTC()
		}
		r.insertLocked(&src)
	}
	r.snapshots[src.Identifier] = snap
	r.mu.Unlock()

	if err := r.db.UpsertSource(ctx, &src, snap); err != nil {
		return fmt.Errorf("persist source %q: %w", src.Identifier, err)
	}
	return nil
}

// SetActive toggles a source in or out of the active corpus.
func (r *Registry) SetActive(ctx context.Context, identifier string, active bool) error {
	r.mu.Lock()
	src, ok := r.sources[identifier]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("source %q: %w", identifier, core.ErrNotFound)
	}
	src.Active = active
	r.mu.Unlock()

	if err := r.db.SetSourceActive(ctx, identifier, active); err != nil {
		return fmt.Errorf("persist toggle of %q: %w", identifier, err)
	}
	return nil
}

// Delete removes a source, its snapshot, and its tenant index entry. A
// dangling tenant index entry is logged and skipped rather than treated as
// corruption.
func (r *Registry) Delete(ctx context.Context, identifier string) error {
	r.mu.Lock()
	src, ok := r.sources[identifier]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("source %q: %w", identifier, core.ErrNotFound)
	}
	delete(r.sources, identifier)
	delete(r.snapshots, identifier)
	r.order = removeString(r.order, identifier)

	ids, ok := r.byTenant[src.TenantID]
	if !ok {
		r.log.Warn("tenant index missing on delete", "identifier", identifier, "tenant", src.TenantID)
	} else {
		r.byTenant[src.TenantID] = removeString(ids, identifier)
	}
	r.mu.Unlock()

	if err := r.db.DeleteSource(ctx, identifier); err != nil {
		return fmt.Errorf("persist delete of %q: %w", identifier, err)
	}
	return nil
}

// Get returns a copy of one source's metadata.
func (r *Registry) Get(identifier string) (models.Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.sources[identifier]
	if !ok {
		return models.Source{}, fmt.Errorf("source %q: %w", identifier, core.ErrNotFound)
	}
	return *src, nil
}

// Recover returns the stored extraction snapshot for a source whose live
// bytes are no longer reachable.
func (r *Registry) Recover(identifier string) (*models.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.snapshots[identifier]
	if !ok {
		return nil, fmt.Errorf("snapshot for %q: %w", identifier, core.ErrNotFound)
	}
	return snap, nil
}

// List returns all sources in first-registration order.
func (r *Registry) List() []models.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Source, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.sources[id])
	}
	return out
}

// Resolve returns the active sources a caller may ground answers on. A
// superadmin sees every active source; everyone else sees exactly their own
// tenant's sources. An unknown tenant or an unscoped non-admin caller
// resolves to the empty set, so tenantless rows are reachable through the
// superadmin only.
func (r *Registry) Resolve(tenantID string, superadmin bool) []models.Source {
	if !superadmin && tenantID == "" {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Source
	for _, id := range r.order {
		src := r.sources[id]
		if !src.Active {
			continue
		}
		if superadmin || src.TenantID == tenantID {
			out = append(out, *src)
		}
	}
	return out
}

func (r *Registry) insertLocked(src *models.Source) {
	r.sources[src.Identifier] = src
	r.order = append(r.order, src.Identifier)
	r.byTenant[src.TenantID] = append(r.byTenant[src.TenantID], src.Identifier)
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
