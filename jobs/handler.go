package jobs

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/scolaris/scolaris/internal/authz"
	"github.com/scolaris/scolaris/internal/platform/httpx"
	"github.com/scolaris/scolaris/internal/shared"
)

// Handler exposes queue observability and the bulk-message enqueue
// endpoint.
type Handler struct {
	client    *Client
	inspector *asynq.Inspector
	logger    *slog.Logger
	validate  *validator.Validate
}

// NewHandler constructs an HTTP handler for jobs endpoints. client and
// inspector may be nil when redis is not configured.
func NewHandler(client *Client, inspector *asynq.Inspector, logger *slog.Logger) *Handler {
	return &Handler{client: client, inspector: inspector, logger: logger, validate: validator.New()}
}

// MountRoutes attaches job routes. Enqueueing bulk messages is an
// admin-only operation.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
	r.Group(func(r chi.Router) {
		r.Use(authz.RequireAdminLike())
		r.Post("/messages/bulk", h.enqueueBulkMessage)
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.inspector == nil {
		httpx.JSON(w, http.StatusOK, map[string]any{"queue": QueueDefault, "pending": 0})
		return
	}
	info, err := h.inspector.GetQueueInfo(QueueDefault)
	if err != nil {
		h.logger.Warn("jobs health", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"queue":   info.Queue,
		"pending": info.Pending,
		"active":  info.Active,
		"retry":   info.Retry,
	})
}

type bulkMessageRequest struct {
	RecipientIDs []int64 `json:"recipient_ids" validate:"required,min=1,max=500,dive,gt=0"`
	Body         string  `json:"body" validate:"required,max=4000"`
}

func (h *Handler) enqueueBulkMessage(w http.ResponseWriter, r *http.Request) {
	if h.client == nil {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	var req bulkMessageRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrInvalidArgument)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	payload := BulkMessagePayload{
		SenderID:        actor.UserID,
		EstablishmentID: actor.EstablishmentID,
		SenderRoles:     actor.Roles,
		RecipientIDs:    req.RecipientIDs,
		Body:            req.Body,
	}
	info, err := h.client.EnqueueBulkMessage(r.Context(), payload)
	if err != nil {
		h.logger.Error("enqueue bulk message failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "failed to enqueue task")
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"task_id": info.ID, "queue": info.Queue})
}
