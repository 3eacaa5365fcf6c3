package students

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/scolaris/scolaris/internal/authz"
	"github.com/scolaris/scolaris/internal/platform/httpx"
	"github.com/scolaris/scolaris/internal/shared"
)

// Handler serves student endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers student routes. Listings are staff-only;
// single-record reads rely on the service's visibility check so that
// students and parents can reach their own records.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(authz.RequireAnyRole(authz.RoleSuperadmin, authz.RoleAdmin, authz.RolePrincipal, authz.RoleCenseur, authz.RoleEnseignant))
		r.Get("/students", h.list)
	})
	r.Group(func(r chi.Router) {
		r.Use(authz.RequireAuthenticated())
		r.Get("/students/{id}", h.get)
		r.Get("/students/{id}/parents", h.listParents)
	})
	r.Group(func(r chi.Router) {
		r.Use(authz.RequireAdminLike())
		r.Post("/students", h.create)
		r.Put("/students/{id}", h.update)
		r.Delete("/students/{id}", h.archive)
		r.Put("/students/{id}/class", h.assignClass)
		r.Post("/students/{id}/parents", h.addParent)
		r.Delete("/students/{id}/parents/{userID}", h.removeParent)
	})
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, httpx.ErrInvalidArgument
	}
	return id, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	filter := SearchFilter{Query: r.URL.Query().Get("q")}
	if v := r.URL.Query().Get("class_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "class_id must be a positive integer")
			return
		}
		filter.ClassID = &id
	}
	filter.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	filter.PerPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))

	items, pagination, err := h.service.List(r.Context(), actor, filter)
	if err != nil {
		h.logger.Error("list students failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"students": items, "pagination": pagination})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	st, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

type studentRequest struct {
	UserID    *int64 `json:"user_id" validate:"omitempty,gt=0"`
	ClassID   *int64 `json:"class_id" validate:"omitempty,gt=0"`
	Matricule string `json:"matricule" validate:"required,max=30"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	BirthDate string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req studentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrInvalidArgument)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
		return
	}
	st := Student{
		UserID:    req.UserID,
		ClassID:   req.ClassID,
		Matricule: req.Matricule,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
	if req.BirthDate != "" {
		d, _ := time.Parse("2006-01-02", req.BirthDate)
		st.BirthDate = &d
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.service.Create(r.Context(), actor, &st); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, st)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req struct {
		FirstName string `json:"first_name" validate:"required,max=100"`
		LastName  string `json:"last_name" validate:"required,max=100"`
		BirthDate string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrInvalidArgument)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
		return
	}
	st := Student{ID: id, FirstName: req.FirstName, LastName: req.LastName}
	if req.BirthDate != "" {
		d, _ := time.Parse("2006-01-02", req.BirthDate)
		st.BirthDate = &d
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.service.Update(r.Context(), actor, &st); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.service.Archive(r.Context(), actor, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) assignClass(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req struct {
		ClassID *int64 `json:"class_id" validate:"omitempty,gt=0"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrInvalidArgument)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.service.AssignClass(r.Context(), actor, id, req.ClassID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listParents(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	links, err := h.service.ListParents(r.Context(), actor, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"parents": links})
}

func (h *Handler) addParent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req struct {
		ParentUserID int64  `json:"parent_user_id" validate:"required,gt=0"`
		Relationship string `json:"relationship" validate:"max=50"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrInvalidArgument)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	link := ParentLink{StudentID: id, ParentUserID: req.ParentUserID, Relationship: req.Relationship}
	if err := h.service.AddParent(r.Context(), actor, link); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeParent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.service.RemoveParent(r.Context(), actor, id, userID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
