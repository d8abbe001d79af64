package handlers

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/minatolabs/kbchat/internal/api/middlewares"
	"github.com/minatolabs/kbchat/internal/core"
	"github.com/minatolabs/kbchat/internal/kb"
	"github.com/minatolabs/kbchat/internal/models"
)

type ResourceHandler struct {
	registry   *kb.Registry
	aggregator *kb.Aggregator
}

func NewResourceHandler(reg *kb.Registry, agg *kb.Aggregator) *ResourceHandler {
	return &ResourceHandler{registry: reg, aggregator: agg}
}

// List returns the caller's visible sources, active and inactive alike.
func (h *ResourceHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := middlewares.UserFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	super := user.Role == models.RoleSuperAdmin
	var out []models.Source
	for _, src := range h.registry.List() {
		if super || (user.TenantID != "" && src.TenantID == user.TenantID) {
			out = append(out, src)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"resources": out})
}

// Toggle flips a source's active flag and rebuilds the aggregate.
func (h *ResourceHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	_, identifier, err := h.authorize(r)
	if err != nil {
		writeError(w, err)
		return
	}

	src, err := h.registry.Get(identifier)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.registry.SetActive(r.Context(), identifier, !src.Active); err != nil {
		writeError(w, err)
		return
	}
	h.aggregator.Refresh(r.Context())

	updated, err := h.registry.Get(identifier)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete removes a source entirely and rebuilds the aggregate.
func (h *ResourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	_, identifier, err := h.authorize(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.registry.Delete(r.Context(), identifier); err != nil {
		writeError(w, err)
		return
	}
	h.aggregator.Refresh(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"deleted": identifier})
}

// authorize resolves the {identifier} path parameter and enforces tenant
// ownership. Employees may not mutate sources at all.
func (h *ResourceHandler) authorize(r *http.Request) (*models.User, string, error) {
	user, ok := middlewares.UserFrom(r.Context())
	if !ok {
		return nil, "", fmt.Errorf("no identity: %w", core.ErrPermission)
	}
	if user.Role == models.RoleEmployee {
		return nil, "", fmt.Errorf("employees may not manage sources: %w", core.ErrPermission)
	}

	identifier, err := url.PathUnescape(chi.URLParam(r, "identifier"))
	if err != nil || identifier == "" {
		return nil, "", fmt.Errorf("bad identifier: %w", core.ErrNotFound)
	}

	if user.Role == models.RoleSuperAdmin {
		return user, identifier, nil
	}

	src, err := h.registry.Get(identifier)
	if err != nil {
		return nil, "", err
	}
	if src.TenantID != user.TenantID {
		return nil, "", fmt.Errorf("source %q belongs to another tenant: %w", identifier, core.ErrPermission)
	}
	return user, identifier, nil
}
