package chat

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

// Handler serves chat endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers chat routes. Everything requires a session;
// the service enforces room-level permissions.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(authz.RequireAuthenticated())
		r.Get("/rooms", h.listRooms)
		r.Post("/rooms", h.createRoom)
		r.Get("/rooms/{id}/participants", h.listParticipants)
		r.Post("/rooms/{id}/participants", h.addParticipant)
		r.Delete("/rooms/{id}/participants/{userID}", h.removeParticipant)
		r.Put("/rooms/{id}/participants/{userID}/role", h.changeRole)
		r.Get("/rooms/{id}/messages", h.listMessages)
		r.Post("/rooms/{id}/messages", h.postMessage)
		r.Get("/unread", h.unreadSummary)
	})
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, httpx.ErrInvalidArgument
	}
	return id, nil
}

func (h *Handler) listRooms(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	rooms, err := h.service.ListRooms(r.Context(), actor)
	if err != nil {
		h.logger.Error("list rooms failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

type createRoomRequest struct {
	Type  string `json:"type" validate:"required"`
	Name  string `json:"name" validate:"required,max=150"`
	RefID *int64 `json:"ref_id" validate:"omitempty,gt=0"`
}

func (h *Handler) createRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrInvalidArgument)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	room := Room{Type: RoomType(req.Type), Name: req.Name, RefID: req.RefID}
	if err := h.service.CreateRoom(r.Context(), actor, &room); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, room)
}

func (h *Handler) listParticipants(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	out, err := h.service.ListParticipants(r.Context(), actor, roomID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"participants": out})
}

func (h *Handler) addParticipant(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req struct {
		UserID int64  `json:"user_id" validate:"required,gt=0"`
		Role   string `json:"role" validate:"required"`
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
	if err := h.service.AddParticipant(r.Context(), actor, roomID, req.UserID, authz.RoomRole(req.Role)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeParticipant(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathID(r, "id")
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
	if err := h.service.RemoveParticipant(r.Context(), actor, roomID, userID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req struct {
		Role string `json:"role" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrInvalidArgument)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.service.ChangeRole(r.Context(), actor, roomID, userID, authz.RoomRole(req.Role)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	before, _ := strconv.ParseInt(r.URL.Query().Get("before"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	actor, _ := shared.ActorFromContext(r.Context())
	page, err := h.service.ListMessages(r.Context(), actor, roomID, before, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) postMessage(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req struct {
		Body string `json:"body" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrInvalidArgument)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	m, err := h.service.PostMessage(r.Context(), actor, roomID, req.Body)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

func (h *Handler) unreadSummary(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	counts, err := h.service.UnreadSummary(r.Context(), actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"unread": counts})
}
