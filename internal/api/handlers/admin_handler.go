package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/minatolabs/kbchat/internal/api/middlewares"
	"github.com/minatolabs/kbchat/internal/core"
	"github.com/minatolabs/kbchat/internal/models"
)

type AdminHandler struct {
	dbclient core.DbClient
}

func NewAdminHandler(db core.DbClient) *AdminHandler {
	return &AdminHandler{dbclient: db}
}

// ChatHistory returns the tenant's logged conversations, newest first.
func (h *AdminHandler) ChatHistory(w http.ResponseWriter, r *http.Request) {
	user, err := requireAdmin(r)
	if err != nil {
		writeError(w, err)
		return
	}

	logs, err := h.dbclient.ListChatLogs(r.Context(), adminScope(user), "")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": logs})
}

// EmployeeUsage aggregates per-employee activity for the tenant.
func (h *AdminHandler) EmployeeUsage(w http.ResponseWriter, r *http.Request) {
	user, err := requireAdmin(r)
	if err != nil {
		writeError(w, err)
		return
	}

	usage, err := h.dbclient.EmployeeUsage(r.Context(), adminScope(user))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"employees": usage})
}

// EmployeeDetail returns one employee's conversations. Admins may only look
// inside their own tenant.
func (h *AdminHandler) EmployeeDetail(w http.ResponseWriter, r *http.Request) {
	user, err := requireAdmin(r)
	if err != nil {
		writeError(w, err)
		return
	}

	employeeID := chi.URLParam(r, "id")
	employee, err := h.dbclient.GetUserByID(r.Context(), employeeID)
	if err != nil {
		writeError(w, err)
		return
	}
	if user.Role != models.RoleSuperAdmin && employee.TenantID != user.TenantID {
		writeError(w, fmt.Errorf("employee %q belongs to another tenant: %w", employeeID, core.ErrPermission))
		return
	}

	logs, err := h.dbclient.ListChatLogs(r.Context(), "", employeeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"employee": employee,
		"history":  logs,
	})
}

// Stats reports usage totals, tenant-scoped for admins and global for the
// superadmin.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	user, err := requireAdmin(r)
	if err != nil {
		writeError(w, err)
		return
	}

	stats, err := h.dbclient.DemoStats(r.Context(), adminScope(user))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func requireAdmin(r *http.Request) (*models.User, error) {
	user, ok := middlewares.UserFrom(r.Context())
	if !ok {
		return nil, fmt.Errorf("no identity: %w", core.ErrPermission)
	}
	if user.Role != models.RoleAdmin && user.Role != models.RoleSuperAdmin {
		return nil, fmt.Errorf("admin access required: %w", core.ErrPermission)
	}
	return user, nil
}

// adminScope is the tenant filter an admin query runs under; empty means all
// tenants and is reserved for the superadmin.
func adminScope(user *models.User) string {
	if user.Role == models.RoleSuperAdmin {
		return ""
	}
	return user.TenantID
}
