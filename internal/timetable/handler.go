package timetable

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/scolaris/scolaris/internal/authz"
	"github.com/scolaris/scolaris/internal/platform/httpx"
	"github.com/scolaris/scolaris/internal/shared"
)

// Handler exposes the timetable HTTP surface.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	validate   *validator.Validate
	idempotent *shared.IdempotencyStore
}

// NewHandler builds Handler instance. idempotent may be nil; the bulk
// endpoint then skips Idempotency-Key handling.
func NewHandler(logger *slog.Logger, service *Service, idempotent *shared.IdempotencyStore) *Handler {
	return &Handler{
		logger:     logger,
		service:    service,
		validate:   validator.New(),
		idempotent: idempotent,
	}
}

// MountRoutes registers timetable routes. Reads require a session;
// writes are admin-gated.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(authz.RequireAuthenticated())
		r.Get("/periods", h.listPeriods)
		r.Get("/classes/{id}", h.classTimetable)
		r.Get("/teachers/{id}", h.teacherTimetable)
	})
	r.Group(func(r chi.Router) {
		r.Use(authz.RequireAdminLike())
		r.Post("/periods", h.createPeriod)
		r.Put("/periods/{id}", h.updatePeriod)
		r.Delete("/periods/{id}", h.deletePeriod)
		r.Post("/entries", h.createEntry)
		r.Put("/entries/{id}", h.updateEntry)
		r.Delete("/entries/{id}", h.deleteEntry)
		r.Post("/entries/bulk", h.bulkCreateEntries)
	})
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, httpx.ErrInvalidArgument
	}
	return id, nil
}

// respondServiceError maps conflicts to 400 with the conflicting entity
// attached; everything else goes through the shared taxonomy.
func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		var with any
		if conflict.WithEntry != nil {
			with = conflict.WithEntry
		} else if conflict.WithPeriod != nil {
			with = conflict.WithPeriod
		}
		httpx.ProblemWith(w, http.StatusBadRequest, "Conflict", conflict.Reason, map[string]any{"conflict_with": with})
		return
	}
	httpx.RespondError(w, err)
}

func (h *Handler) listPeriods(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	periods, err := h.service.ListPeriods(r.Context(), actor.EstablishmentID)
	if err != nil {
		h.logger.Error("list periods failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"periods": periods})
}

type periodRequest struct {
	Name      string `json:"name" validate:"required,max=100"`
	DayOfWeek int    `json:"day_of_week" validate:"required,min=1,max=7"`
	StartTime string `json:"start_time" validate:"required,len=5"`
	EndTime   string `json:"end_time" validate:"required,len=5"`
	Rank      int    `json:"rank" validate:"min=0"`
	IsBreak   bool   `json:"is_break"`
}

func (h *Handler) createPeriod(w http.ResponseWriter, r *http.Request) {
	var req periodRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrInvalidArgument)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	period := Period{
		EstablishmentID: actor.EstablishmentID,
		Name:            req.Name,
		DayOfWeek:       req.DayOfWeek,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		Rank:            req.Rank,
		IsBreak:         req.IsBreak,
	}
	if err := h.service.CreatePeriod(r.Context(), actor.UserID, &period); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, period)
}

func (h *Handler) updatePeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req periodRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrInvalidArgument)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	period := Period{
		ID:        id,
		Name:      req.Name,
		DayOfWeek: req.DayOfWeek,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Rank:      req.Rank,
		IsBreak:   req.IsBreak,
	}
	if err := h.service.UpdatePeriod(r.Context(), actor.UserID, &period); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

func (h *Handler) deletePeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.service.DeletePeriod(r.Context(), actor.UserID, id); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func academicYearParam(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("academic_year_id")
	if raw == "" {
		return 0, httpx.ErrInvalidArgument
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, httpx.ErrInvalidArgument
	}
	return id, nil
}

func (h *Handler) classTimetable(w http.ResponseWriter, r *http.Request) {
	classID, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	yearID, err := academicYearParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "academic_year_id query parameter required")
		return
	}
	entries, err := h.service.ClassTimetable(r.Context(), classID, yearID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) teacherTimetable(w http.ResponseWriter, r *http.Request) {
	teacherID, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	yearID, err := academicYearParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "academic_year_id query parameter required")
		return
	}
	entries, err := h.service.TeacherTimetable(r.Context(), teacherID, yearID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type entryRequest struct {
	AcademicYearID int64  `json:"academic_year_id" validate:"required,gt=0"`
	ClassID        int64  `json:"class_id" validate:"required,gt=0"`
	SubjectID      int64  `json:"subject_id" validate:"required,gt=0"`
	TeacherID      int64  `json:"teacher_id" validate:"required,gt=0"`
	PeriodID       int64  `json:"period_id" validate:"required,gt=0"`
	RoomID         *int64 `json:"room_id" validate:"omitempty,gt=0"`
}

func (req entryRequest) toEntry(establishmentID int64) Entry {
	return Entry{
		EstablishmentID: establishmentID,
		AcademicYearID:  req.AcademicYearID,
		ClassID:         req.ClassID,
		SubjectID:       req.SubjectID,
		TeacherID:       req.TeacherID,
		PeriodID:        req.PeriodID,
		RoomID:          req.RoomID,
	}
}

func (h *Handler) createEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrInvalidArgument)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	entry := req.toEntry(actor.EstablishmentID)
	if err := h.service.CreateEntry(r.Context(), actor.UserID, &entry); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) updateEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req entryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrInvalidArgument)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	entry := req.toEntry(actor.EstablishmentID)
	entry.ID = id
	if err := h.service.UpdateEntry(r.Context(), actor.UserID, &entry); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.service.DeleteEntry(r.Context(), actor.UserID, id); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type bulkRequest struct {
	Entries []entryRequest `json:"entries" validate:"required,min=1,max=200,dive"`
}

func (h *Handler) bulkCreateEntries(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrInvalidArgument)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
		return
	}

	if key := r.Header.Get("Idempotency-Key"); key != "" && h.idempotent != nil {
		if err := h.idempotent.CheckAndInsert(r.Context(), key, "timetable.bulk"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Duplicate Request", "this bulk request was already processed")
				return
			}
			httpx.RespondError(w, err)
			return
		}
	}

	actor, _ := shared.ActorFromContext(r.Context())
	candidates := make([]Entry, 0, len(req.Entries))
	for _, e := range req.Entries {
		candidates = append(candidates, e.toEntry(actor.EstablishmentID))
	}
	results, err := h.service.BulkCreate(r.Context(), actor.UserID, candidates)
	if err != nil {
		h.logger.Error("bulk create failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"results": results})
}
