// Package queue is the durable buffer between the check-in endpoint and the
// batch writer: a Redis list with atomic tail append and atomic bounded head
// drain. Losing Redis loses queued-but-unflushed check-ins, so append errors
// are always surfaced to the caller rather than swallowed.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/eventdesk/checkin-service/internal/models"
)

const (
	queueKey      = "attendance:queue"
	deadLetterKey = "attendance:deadletter"
)

// RedisQueue is the Redis-list implementation of the attendance queue.
type RedisQueue struct {
	rdb *redis.Client
}

// NewRedisQueue wraps an existing Redis client.
func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb}
}

// Append pushes one serialized event to the tail of the queue.
// A failed push must propagate: the endpoint must not report "queued"
// for an event that was never stored.
func (q *RedisQueue) Append(ctx context.Context, ev models.AttendanceEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := q.rdb.RPush(ctx, queueKey, raw).Err(); err != nil {
		return fmt.Errorf("queue append: %w", err)
	}
	return nil
}

// DrainUpTo atomically removes and returns up to n entries from the head.
// An empty queue yields an empty slice, not an error. LPOP with a count is a
// single atomic command, so two concurrent drains never see the same entry.
// Entries that fail to decode are dropped with a log line; a poison entry
// must not wedge the writer.
func (q *RedisQueue) DrainUpTo(ctx context.Context, n int) ([]models.AttendanceEvent, error) {
	if n <= 0 {
		return nil, nil
	}

	raws, err := q.rdb.LPopCount(ctx, queueKey, n).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue drain: %w", err)
	}

	events := make([]models.AttendanceEvent, 0, len(raws))
	for _, raw := range raws {
		var ev models.AttendanceEvent
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			log.Printf("queue: dropping undecodable entry: %v", err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// Len returns the number of pending entries.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, queueKey).Result()
}

// DeadLetter parks a drained batch that could not be flushed. The entries are
// already removed from the main queue; re-pushing them there risks a poison
// batch spinning the writer, so operators drain this list by hand.
func (q *RedisQueue) DeadLetter(ctx context.Context, events []models.AttendanceEvent) error {
	if len(events) == 0 {
		return nil
	}
	raws := make([]any, 0, len(events))
	for _, ev := range events {
		raw, err := json.Marshal(ev)
		if err != nil {
			log.Printf("queue: dead-letter marshal failed for %s/%s: %v", ev.UserID, ev.Day, err)
			continue
		}
		raws = append(raws, raw)
	}
	if len(raws) == 0 {
		return nil
	}
	if err := q.rdb.RPush(ctx, deadLetterKey, raws...).Err(); err != nil {
		return fmt.Errorf("dead-letter push: %w", err)
	}
	return nil
}
