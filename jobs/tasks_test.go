package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scolaris/scolaris/internal/chat"
	"github.com/scolaris/scolaris/internal/shared"
)

type fakeSender struct {
	mu        sync.Mutex
	delivered []int64
	failFor   int64
}

func (f *fakeSender) SendDirect(_ context.Context, actor shared.Actor, recipientID int64, body string) (*chat.Message, error) {
	if f.failFor != 0 && recipientID == f.failFor {
		return nil, errors.New("recipient unreachable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, recipientID)
	return &chat.Message{RoomID: recipientID, SenderID: actor.UserID, Body: body}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bulkTask(t *testing.T, payload BulkMessagePayload) *asynq.Task {
	t.Helper()
	task, err := NewBulkMessageTask(payload)
	require.NoError(t, err)
	return task
}

func TestBulkMessageHandlerFansOut(t *testing.T) {
	sender := &fakeSender{}
	handler := BulkMessageHandler(sender, nil, testLogger())

	payload := BulkMessagePayload{
		SenderID:        7,
		EstablishmentID: 1,
		SenderRoles:     []string{"admin"},
		RecipientIDs:    []int64{10, 11, 12},
		Body:            "rentree le 2 septembre",
	}
	require.NoError(t, handler(context.Background(), bulkTask(t, payload)))

	sort.Slice(sender.delivered, func(i, j int) bool { return sender.delivered[i] < sender.delivered[j] })
	assert.Equal(t, []int64{10, 11, 12}, sender.delivered)
}

func TestBulkMessageHandlerReportsDeliveryFailure(t *testing.T) {
	sender := &fakeSender{failFor: 11}
	handler := BulkMessageHandler(sender, nil, testLogger())

	payload := BulkMessagePayload{
		SenderID:     7,
		SenderRoles:  []string{"admin"},
		RecipientIDs: []int64{10, 11},
		Body:         "x",
	}
	err := handler(context.Background(), bulkTask(t, payload))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestBulkMessageHandlerSkipsBadPayload(t *testing.T) {
	handler := BulkMessageHandler(&fakeSender{}, nil, testLogger())

	err := handler(context.Background(), asynq.NewTask(TaskBulkMessage, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	empty, merr := json.Marshal(BulkMessagePayload{SenderID: 7})
	require.NoError(t, merr)
	err = handler(context.Background(), asynq.NewTask(TaskBulkMessage, empty))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

type fakeSessionStore struct {
	pruned int64
	err    error
}

func (f *fakeSessionStore) DeleteExpiredSessions(context.Context) (int64, error) {
	return f.pruned, f.err
}

func TestSessionCleanupHandler(t *testing.T) {
	handler := SessionCleanupHandler(&fakeSessionStore{pruned: 3}, nil, testLogger())
	assert.NoError(t, handler(context.Background(), NewSessionCleanupTask()))

	boom := errors.New("db down")
	handler = SessionCleanupHandler(&fakeSessionStore{err: boom}, nil, testLogger())
	assert.ErrorIs(t, handler(context.Background(), NewSessionCleanupTask()), boom)
}
