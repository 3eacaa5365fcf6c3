package roles

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/scolaris/scolaris/internal/authz"
	"github.com/scolaris/scolaris/internal/platform/httpx"
	"github.com/scolaris/scolaris/internal/shared"
)

// Handler manages role and permission endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers role routes under /roles and permission routes
// under /permissions. All of them are admin-gated.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(authz.RequireAdminLike())
		r.Route("/roles", func(r chi.Router) {
			r.Get("/", h.listRoles)
			r.Post("/", h.createRole)
			r.Get("/{id}", h.getRole)
			r.Put("/{id}", h.updateRole)
			r.Delete("/{id}", h.deleteRole)
			r.Get("/{id}/users", h.roleUsers)
			r.Get("/{id}/permissions", h.rolePermissions)
			r.Post("/{id}/permissions/{permID}", h.assignPermission)
			r.Delete("/{id}/permissions/{permID}", h.removePermission)
		})
		r.Route("/permissions", func(r chi.Router) {
			r.Get("/", h.listPermissions)
			r.Post("/", h.createPermission)
			r.Put("/{id}", h.updatePermission)
			r.Delete("/{id}", h.deletePermission)
			r.Get("/{id}/roles", h.permissionRoles)
		})
	})
}

func pathInt(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, httpx.ErrInvalidArgument
	}
	return id, nil
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	roles, err := h.service.ListRoles(r.Context(), actor.EstablishmentID)
	if err != nil {
		h.logger.Error("list roles failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

type roleRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrInvalidArgument)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	role := Role{EstablishmentID: actor.EstablishmentID, Name: req.Name, Description: req.Description}
	if err := h.service.CreateRole(r.Context(), actor, &role); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrInvalidArgument)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	role := Role{ID: id, Name: req.Name, Description: req.Description}
	if err := h.service.UpdateRole(r.Context(), actor, &role); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.service.DeleteRole(r.Context(), actor, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) roleUsers(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	users, err := h.service.RoleUsers(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) rolePermissions(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	perms, err := h.service.RolePermissions(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *Handler) assignPermission(w http.ResponseWriter, r *http.Request) {
	roleID, err := pathInt(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	permID, err := pathInt(r, "permID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.service.AssignPermission(r.Context(), actor, roleID, permID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removePermission(w http.ResponseWriter, r *http.Request) {
	roleID, err := pathInt(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	permID, err := pathInt(r, "permID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.service.RemovePermission(r.Context(), actor, roleID, permID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	perms, err := h.service.ListPermissions(r.Context(), actor.EstablishmentID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

type permissionRequest struct {
	Functionality string `json:"functionality" validate:"required,max=100"`
	CanView       bool   `json:"can_view"`
	CanAdd        bool   `json:"can_add"`
	CanEdit       bool   `json:"can_edit"`
	CanDelete     bool   `json:"can_delete"`
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrInvalidArgument)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	perm := Permission{
		EstablishmentID: actor.EstablishmentID,
		Functionality:   req.Functionality,
		CanView:         req.CanView,
		CanAdd:          req.CanAdd,
		CanEdit:         req.CanEdit,
		CanDelete:       req.CanDelete,
	}
	if err := h.service.CreatePermission(r.Context(), actor, &perm); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, perm)
}

func (h *Handler) updatePermission(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req permissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrInvalidArgument)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	perm := Permission{ID: id, CanView: req.CanView, CanAdd: req.CanAdd, CanEdit: req.CanEdit, CanDelete: req.CanDelete}
	if err := h.service.UpdatePermission(r.Context(), actor, &perm); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, perm)
}

func (h *Handler) deletePermission(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.service.DeletePermission(r.Context(), actor, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) permissionRoles(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	roles, err := h.service.PermissionRoles(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}
