package school

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

// Handler manages masterdata endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers masterdata routes. Establishment management is
// superadmin-only; the rest is admin-gated with open reads.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(authz.RequireAnyRole(authz.RoleSuperadmin))
		r.Post("/establishments", h.createEstablishment)
		r.Put("/establishments/{id}", h.updateEstablishment)
	})
	r.Group(func(r chi.Router) {
		r.Use(authz.RequireAdminLike())
		r.Get("/establishments", h.listEstablishments)
		r.Post("/years", h.createAcademicYear)
		r.Post("/years/{id}/current", h.setCurrentYear)
		r.Post("/classes", h.createClass)
		r.Put("/classes/{id}", h.updateClass)
		r.Delete("/classes/{id}", h.deleteClass)
		r.Post("/subjects", h.createSubject)
		r.Delete("/subjects/{id}", h.deleteSubject)
		r.Post("/rooms", h.createRoom)
		r.Delete("/rooms/{id}", h.deleteRoom)
	})
	r.Group(func(r chi.Router) {
		r.Use(authz.RequireAuthenticated())
		r.Get("/years", h.listAcademicYears)
		r.Get("/classes", h.listClasses)
		r.Get("/subjects", h.listSubjects)
		r.Get("/rooms", h.listRooms)
	})
}

func pathInt(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, httpx.ErrInvalidArgument
	}
	return id, nil
}

func (h *Handler) listEstablishments(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListEstablishments(r.Context())
	if err != nil {
		h.logger.Error("list establishments failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"establishments": out})
}

type establishmentRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Code    string `json:"code" validate:"required,max=20"`
	Address string `json:"address" validate:"max=500"`
	Phone   string `json:"phone" validate:"max=30"`
}

func (h *Handler) createEstablishment(w http.ResponseWriter, r *http.Request) {
	var req establishmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrInvalidArgument)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	e := Establishment{Name: req.Name, Code: req.Code, Address: req.Address, Phone: req.Phone}
	if err := h.service.CreateEstablishment(r.Context(), actor, &e); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, e)
}

func (h *Handler) updateEstablishment(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req establishmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrInvalidArgument)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	e := Establishment{ID: id, Name: req.Name, Address: req.Address, Phone: req.Phone}
	if err := h.service.UpdateEstablishment(r.Context(), actor, &e); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) listAcademicYears(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	out, err := h.service.ListAcademicYears(r.Context(), actor.EstablishmentID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"academic_years": out})
}

type yearRequest struct {
	Label     string `json:"label" validate:"required,max=20"`
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
}

func (h *Handler) createAcademicYear(w http.ResponseWriter, r *http.Request) {
	var req yearRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrInvalidArgument)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
		return
	}
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "start_date must be YYYY-MM-DD")
		return
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "end_date must be YYYY-MM-DD")
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	y := AcademicYear{EstablishmentID: actor.EstablishmentID, Label: req.Label, StartDate: start, EndDate: end}
	if err := h.service.CreateAcademicYear(r.Context(), actor, &y); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, y)
}

func (h *Handler) setCurrentYear(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.service.SetCurrentAcademicYear(r.Context(), actor, actor.EstablishmentID, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listClasses(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	out, err := h.service.ListClasses(r.Context(), actor.EstablishmentID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"classes": out})
}

type classRequest struct {
	Name          string `json:"name" validate:"required,max=100"`
	Level         string `json:"level" validate:"max=50"`
	HeadTeacherID *int64 `json:"head_teacher_id" validate:"omitempty,gt=0"`
}

func (h *Handler) createClass(w http.ResponseWriter, r *http.Request) {
	var req classRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrInvalidArgument)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	c := Class{EstablishmentID: actor.EstablishmentID, Name: req.Name, Level: req.Level, HeadTeacherID: req.HeadTeacherID}
	if err := h.service.CreateClass(r.Context(), actor, &c); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) updateClass(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req classRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrInvalidArgument)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	c := Class{ID: id, Name: req.Name, Level: req.Level, HeadTeacherID: req.HeadTeacherID}
	if err := h.service.UpdateClass(r.Context(), actor, &c); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) deleteClass(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.service.DeleteClass(r.Context(), actor, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listSubjects(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	out, err := h.service.ListSubjects(r.Context(), actor.EstablishmentID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"subjects": out})
}

type subjectRequest struct {
	Name         string `json:"name" validate:"required,max=100"`
	Code         string `json:"code" validate:"max=20"`
	DepartmentID *int64 `json:"department_id" validate:"omitempty,gt=0"`
}

func (h *Handler) createSubject(w http.ResponseWriter, r *http.Request) {
	var req subjectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrInvalidArgument)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	s := Subject{EstablishmentID: actor.EstablishmentID, Name: req.Name, Code: req.Code, DepartmentID: req.DepartmentID}
	if err := h.service.CreateSubject(r.Context(), actor, &s); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, s)
}

func (h *Handler) deleteSubject(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.service.DeleteSubject(r.Context(), actor, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listRooms(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	out, err := h.service.ListRooms(r.Context(), actor.EstablishmentID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rooms": out})
}

type roomRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Capacity int    `json:"capacity" validate:"min=0,max=2000"`
}

func (h *Handler) createRoom(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrInvalidArgument)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	room := Room{EstablishmentID: actor.EstablishmentID, Name: req.Name, Capacity: req.Capacity}
	if err := h.service.CreateRoom(r.Context(), actor, &room); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, room)
}

func (h *Handler) deleteRoom(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.service.DeleteRoom(r.Context(), actor, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
