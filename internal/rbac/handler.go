package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/primaria-digitala/registru/internal/auth"
	"github.com/primaria-digitala/registru/internal/platform/httpx"
)

// Handler exposes role and permission administration endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers the role administration routes. The caller
// guards the group with the role administration permission.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/roles", h.listRoles)
	r.Post("/roles", h.createRole)
	r.Put("/roles/{roleID}", h.updateRole)
	r.Put("/roles/{roleID}/permissions", h.setRolePermissions)
	r.Get("/permissions", h.listPermissions)
	r.Post("/assignments", h.assignRole)
	r.Delete("/assignments", h.removeRole)
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

type roleRequest struct {
	Name        string `json:"name" validate:"required"`
	AccessLevel int    `json:"access_level" validate:"required,min=1,max=10"`
	IsActive    *bool  `json:"is_active"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "corp JSON invalid")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "nume si nivel de acces (1-10) sunt obligatorii")
		return
	}
	role, err := h.service.CreateRole(r.Context(), req.Name, req.AccessLevel, h.meta(r))
	if err != nil {
		h.respondError(w, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	roleID, err := pathID(r, "roleID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "identificator rol invalid")
		return
	}
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "corp JSON invalid")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "nume si nivel de acces (1-10) sunt obligatorii")
		return
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	role, err := h.service.UpdateRole(r.Context(), roleID, req.Name, req.AccessLevel, isActive, h.meta(r))
	if err != nil {
		h.respondError(w, "update role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

type rolePermissionsRequest struct {
	PermissionIDs []int64 `json:"permission_ids"`
}

func (h *Handler) setRolePermissions(w http.ResponseWriter, r *http.Request) {
	roleID, err := pathID(r, "roleID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "identificator rol invalid")
		return
	}
	var req rolePermissionsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "corp JSON invalid")
		return
	}
	if err := h.service.SetRolePermissions(r.Context(), roleID, req.PermissionIDs, h.meta(r)); err != nil {
		h.respondError(w, "set role permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.PermissionCatalog(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

type assignmentRequest struct {
	ActorID int64 `json:"actor_id" validate:"required"`
	RoleID  int64 `json:"role_id" validate:"required"`
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	var req assignmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "corp JSON invalid")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "actor_id si role_id sunt obligatorii")
		return
	}
	if err := h.service.AssignRole(r.Context(), req.ActorID, req.RoleID, h.meta(r)); err != nil {
		h.respondError(w, "assign role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	var req assignmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "corp JSON invalid")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "actor_id si role_id sunt obligatorii")
		return
	}
	if err := h.service.RemoveRole(r.Context(), req.ActorID, req.RoleID, h.meta(r)); err != nil {
		h.respondError(w, "remove role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "rolul nu exista")
	case errors.Is(err, ErrInvalidAccessLevel):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (h *Handler) meta(r *http.Request) Meta {
	meta := Meta{IP: r.RemoteAddr, UserAgent: r.UserAgent()}
	if identity := auth.IdentityFromContext(r.Context()); identity != nil {
		meta.ActorID = identity.ActorID
	}
	return meta
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}
