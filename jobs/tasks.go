package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/scolaris/scolaris/internal/chat"
	jobmetrics "github.com/scolaris/scolaris/internal/jobs"
	"github.com/scolaris/scolaris/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBulkMessage fans one chat message out to a recipient set.
	TaskBulkMessage = "messaging:bulk"
	// TaskSessionCleanup prunes expired session audit rows.
	TaskSessionCleanup = "sessions:cleanup"

	// bulkSendConcurrency caps parallel deliveries per task.
	bulkSendConcurrency = 8
)

// BulkMessagePayload carries one message and its recipient set. The
// sender fields rebuild the acting identity inside the worker.
type BulkMessagePayload struct {
	SenderID        int64    `json:"sender_id"`
	EstablishmentID int64    `json:"establishment_id"`
	SenderRoles     []string `json:"sender_roles"`
	RecipientIDs    []int64  `json:"recipient_ids"`
	Body            string   `json:"body"`
}

// NewBulkMessageTask constructs an Asynq task.
func NewBulkMessageTask(payload BulkMessagePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBulkMessage, data), nil
}

// NewSessionCleanupTask constructs the cleanup task. It carries no
// payload; the cron schedule is the trigger.
func NewSessionCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskSessionCleanup, nil)
}

// DirectSender delivers one direct message on behalf of an actor.
type DirectSender interface {
	SendDirect(ctx context.Context, actor shared.Actor, recipientID int64, body string) (*chat.Message, error)
}

// SessionStore prunes expired sessions.
type SessionStore interface {
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// BulkMessageHandler processes messaging:bulk tasks, delivering to
// every recipient concurrently. Per-recipient failures fail the task
// so asynq retries it; deliveries are idempotent per room, dupes only
// cost an extra message.
func BulkMessageHandler(sender DirectSender, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskBulkMessage)

		var payload BulkMessagePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			_ = tracker.End(err)
			return asynq.SkipRetry
		}
		if payload.SenderID == 0 || len(payload.RecipientIDs) == 0 || payload.Body == "" {
			err := errors.New("jobs: bulk message payload incomplete")
			_ = tracker.End(err)
			return asynq.SkipRetry
		}

		actor := shared.Actor{
			UserID:          payload.SenderID,
			EstablishmentID: payload.EstablishmentID,
			Roles:           payload.SenderRoles,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(bulkSendConcurrency)
		for _, recipientID := range payload.RecipientIDs {
			recipientID := recipientID
			g.Go(func() error {
				if _, err := sender.SendDirect(gctx, actor, recipientID, payload.Body); err != nil {
					return fmt.Errorf("deliver to %d: %w", recipientID, err)
				}
				return nil
			})
		}
		err := g.Wait()
		if err != nil {
			logger.Error("bulk message fan-out failed", slog.Any("error", err))
		} else {
			logger.Info("bulk message delivered",
				slog.Int("recipients", len(payload.RecipientIDs)),
				slog.Int64("sender", payload.SenderID))
		}
		return tracker.End(err)
	}
}

// SessionCleanupHandler processes sessions:cleanup tasks.
func SessionCleanupHandler(store SessionStore, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskSessionCleanup)
		n, err := store.DeleteExpiredSessions(ctx)
		if err != nil {
			logger.Error("session cleanup failed", slog.Any("error", err))
			return tracker.End(err)
		}
		logger.Info("session cleanup done", slog.Int64("pruned", n))
		return tracker.End(nil)
	}
}
