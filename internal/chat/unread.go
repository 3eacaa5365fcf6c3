package chat

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const unreadTTL = 30 * 24 * time.Hour

// UnreadCounter keeps per-user per-room unread counts in redis. The
// counters are advisory; losing them costs nothing but a badge.
type UnreadCounter struct {
	rdb *redis.Client
}

// NewUnreadCounter builds the counter store.
func NewUnreadCounter(rdb *redis.Client) *UnreadCounter {
	return &UnreadCounter{rdb: rdb}
}

func unreadKey(userID, roomID int64) string {
	return fmt.Sprintf("chat:unread:%d:%d", userID, roomID)
}

// Bump increments the unread count of every recipient in one round
// trip.
func (c *UnreadCounter) Bump(ctx context.Context, roomID int64, recipients []int64) error {
	if c == nil || len(recipients) == 0 {
		return nil
	}
	pipe := c.rdb.Pipeline()
	for _, userID := range recipients {
		key := unreadKey(userID, roomID)
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, unreadTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Reset clears the unread count of one user in one room.
func (c *UnreadCounter) Reset(ctx context.Context, userID, roomID int64) error {
	if c == nil {
		return nil
	}
	return c.rdb.Del(ctx, unreadKey(userID, roomID)).Err()
}

// Counts returns the unread count per room for one user. Rooms with no
// counter are reported as zero.
func (c *UnreadCounter) Counts(ctx context.Context, userID int64, roomIDs []int64) (map[int64]int64, error) {
	out := make(map[int64]int64, len(roomIDs))
	if c == nil || len(roomIDs) == 0 {
		return out, nil
	}
	keys := make([]string, len(roomIDs))
	for i, roomID := range roomIDs {
		keys[i] = unreadKey(userID, roomID)
	}
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		if v == nil {
			out[roomIDs[i]] = 0
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		out[roomIDs[i]] = n
	}
	return out, nil
}
