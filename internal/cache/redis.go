// Package cache is the derived, expendable view over Redis. The store remains
// the source of truth: every value here can be dropped at any time at the cost
// of one extra DB round-trip, and every entry carries a TTL so a missed
// invalidation ages out on its own.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eventdesk/checkin-service/internal/models"
)

// NewClient connects to Redis from a redis:// URL and fails fast when the
// server is unreachable.
func NewClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// RedisCache holds attendance entries (plain keys, one per user/day) and task
// hashes (one hash per user, one field per task).
type RedisCache struct {
	rdb           *redis.Client
	attendanceTTL time.Duration
	tasksTTL      time.Duration
}

// NewRedisCache wraps an existing Redis client with the configured TTL bounds.
func NewRedisCache(rdb *redis.Client, attendanceTTL, tasksTTL time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, attendanceTTL: attendanceTTL, tasksTTL: tasksTTL}
}

func attendanceKey(userID, day string) string {
	return "attendance:" + userID + ":" + day
}

func tasksKey(userID string) string {
	return "tasks:" + userID
}

// GetAttendance returns the cached attendance entry for (userID, day).
// A miss is (zero, false, nil).
func (c *RedisCache) GetAttendance(ctx context.Context, userID, day string) (models.AttendanceEvent, bool, error) {
	raw, err := c.rdb.Get(ctx, attendanceKey(userID, day)).Result()
	if errors.Is(err, redis.Nil) {
		return models.AttendanceEvent{}, false, nil
	}
	if err != nil {
		return models.AttendanceEvent{}, false, err
	}

	var rec models.AttendanceEvent
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return models.AttendanceEvent{}, false, fmt.Errorf("decode cached attendance: %w", err)
	}
	return rec, true, nil
}

// SetAttendance populates the read-through entry with the bounded TTL.
func (c *RedisCache) SetAttendance(ctx context.Context, rec models.AttendanceEvent) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode attendance: %w", err)
	}
	return c.rdb.Set(ctx, attendanceKey(rec.UserID, rec.Day), raw, c.attendanceTTL).Err()
}

// DeleteAttendance invalidates one entry after a flush. Callers treat a
// failure as non-fatal; the TTL bounds the resulting staleness.
func (c *RedisCache) DeleteAttendance(ctx context.Context, userID, day string) error {
	return c.rdb.Del(ctx, attendanceKey(userID, day)).Err()
}

// TasksExist reports whether the per-user task hash is populated.
func (c *RedisCache) TasksExist(ctx context.Context, userID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, tasksKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetTasks returns the full per-user task hash.
func (c *RedisCache) GetTasks(ctx context.Context, userID string) (map[string]models.TaskRecord, error) {
	fields, err := c.rdb.HGetAll(ctx, tasksKey(userID)).Result()
	if err != nil {
		return nil, err
	}

	tasks := make(map[string]models.TaskRecord, len(fields))
	for name, raw := range fields {
		var rec models.TaskRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode cached task %s: %w", name, err)
		}
		rec.TaskName = name
		tasks[name] = rec
	}
	return tasks, nil
}

// SetTask writes one field of the task hash and refreshes the hash TTL.
// This is the write-through half of the task path: it runs after every
// successful DB upsert so an immediate read is a cache hit.
func (c *RedisCache) SetTask(ctx context.Context, userID string, rec models.TaskRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	key := tasksKey(userID)

	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, key, rec.TaskName, raw)
	pipe.Expire(ctx, key, c.tasksTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// SetTasks repopulates the whole hash in one pass after a read-through miss.
func (c *RedisCache) SetTasks(ctx context.Context, userID string, tasks map[string]models.TaskRecord) error {
	if len(tasks) == 0 {
		return nil
	}
	key := tasksKey(userID)

	pipe := c.rdb.Pipeline()
	for name, rec := range tasks {
		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode task %s: %w", name, err)
		}
		pipe.HSet(ctx, key, name, raw)
	}
	pipe.Expire(ctx, key, c.tasksTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Ping is used by the readiness endpoint.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
