package permission

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/tianting/celestial-court/internal/auth"
	"github.com/tianting/celestial-court/internal/transport"
	"github.com/tianting/celestial-court/pkg/logger"
)

type ServiceAPI interface {
	ListPermissions() ([]*Permission, error)
	ListRoles() ([]*Role, error)
	UpdateRolePermissions(roleID int64, dto UpdateRoleDTO) (*Role, error)
	UpdatePermission(id int64, dto UpdatePermissionDTO) (*Permission, error)
}

type Handler struct {
	*transport.BaseHandler
	Service  ServiceAPI
	Resolver *Resolver
}

func NewHandler(service ServiceAPI, resolver *Resolver) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
		Resolver:    resolver,
	}
}

func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.Service.ListPermissions()
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"data": perms})
}

func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.Service.ListRoles()
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"data": roles})
}

func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	roleID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid role ID")
		return
	}

	var dto UpdateRoleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	role, err := h.Service.UpdateRolePermissions(roleID, dto)
	if err != nil {
		h.Logger.Error("UpdateRole: service error", "error", err, "role_id", roleID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, role)
}

func (h *Handler) UpdatePermission(w http.ResponseWriter, r *http.Request) {
	permID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid permission ID")
		return
	}

	var dto UpdatePermissionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	perm, err := h.Service.UpdatePermission(permID, dto)
	if err != nil {
		h.Logger.Error("UpdatePermission: service error", "error", err, "permission_id", permID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, perm)
}

// Menus returns the menu permissions the calling principal's roles grant.
// The sidebar renders from this list, so UI visibility and server checks
// share the same resolver.
func (h *Handler) Menus(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	menus := h.Resolver.MenusFor(user.RoleIDs)
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"data": menus})
}

// Operations returns the operation permissions under one menu that the
// calling principal's roles grant.
func (h *Handler) Operations(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	menuCode := chi.URLParam(r, "menuCode")
	ops := h.Resolver.OperationsFor(user.RoleIDs, menuCode)
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"data": ops})
}
