package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/minatolabs/kbchat/internal/api/middlewares"
	"github.com/minatolabs/kbchat/internal/core"
	"github.com/minatolabs/kbchat/internal/models"
)

type TenantHandler struct {
	dbclient core.DbClient
}

func NewTenantHandler(db core.DbClient) *TenantHandler {
	return &TenantHandler{dbclient: db}
}

type createTenantRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Create provisions a tenant. Only the superadmin may do this; signups then
// reference the tenant id.
func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := middlewares.UserFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if user.Role != models.RoleSuperAdmin {
		writeError(w, fmt.Errorf("tenant provisioning requires superadmin: %w", core.ErrPermission))
		return
	}

	var req createTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	tenant := &models.Tenant{
		ID:        req.ID,
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.dbclient.CreateTenant(r.Context(), tenant); err != nil {
		http.Error(w, "tenant exists", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusCreated, tenant)
}

type tenantDetail struct {
	Tenant *models.Tenant `json:"tenant"`
	Users  []models.User  `json:"users"`
}

// Get returns one tenant and its users. Admins may only look at their own
// tenant.
func (h *TenantHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := requireAdmin(r)
	if err != nil {
		writeError(w, err)
		return
	}

	tenantID := chi.URLParam(r, "id")
	if user.Role != models.RoleSuperAdmin && tenantID != user.TenantID {
		writeError(w, fmt.Errorf("tenant %q is not yours: %w", tenantID, core.ErrPermission))
		return
	}

	tenant, err := h.dbclient.GetTenantByID(r.Context(), tenantID)
	if err != nil {
		writeError(w, err)
		return
	}
	users, err := h.dbclient.ListUsersByTenant(r.Context(), tenantID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tenantDetail{Tenant: tenant, Users: users})
}
