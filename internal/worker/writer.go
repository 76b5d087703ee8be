// Package worker contains the batch writer: the single background loop that
// drains queued check-ins into Postgres and invalidates the attendance cache.
// Batching correctness (last-write-wins per key) assumes exactly one
// drain-then-flush actor, so run one Writer per deployment.
package worker

import (
	"context"
	"log"
	"time"

	"github.com/eventdesk/checkin-service/internal/models"
)

// postFlushPause keeps the loop from monopolizing the DB pool when the queue
// stays non-empty.
const postFlushPause = 10 * time.Millisecond

// Queue is the drain side of the attendance queue.
type Queue interface {
	Len(ctx context.Context) (int64, error)
	DrainUpTo(ctx context.Context, n int) ([]models.AttendanceEvent, error)
	DeadLetter(ctx context.Context, events []models.AttendanceEvent) error
}

// Store persists a drained batch transactionally.
type Store interface {
	UpsertAttendanceBatch(ctx context.Context, events []models.AttendanceEvent) error
}

// Invalidator drops attendance cache entries after a committed flush.
type Invalidator interface {
	DeleteAttendance(ctx context.Context, userID, day string) error
}

// Writer polls the queue and flushes bounded batches.
type Writer struct {
	queue        Queue
	store        Store
	cache        Invalidator
	batchSize    int
	pollInterval time.Duration
}

// New constructs a Writer with explicit dependencies.
func New(q Queue, st Store, inv Invalidator, batchSize int, pollInterval time.Duration) *Writer {
	return &Writer{
		queue:        q,
		store:        st,
		cache:        inv,
		batchSize:    batchSize,
		pollInterval: pollInterval,
	}
}

// Run loops until ctx is cancelled. Every failure is logged and absorbed: a
// bad batch or an unreachable dependency must never take the worker down.
func (w *Writer) Run(ctx context.Context) {
	log.Printf("batch writer started (batch_size=%d poll=%s)", w.batchSize, w.pollInterval)
	for {
		if ctx.Err() != nil {
			log.Println("batch writer stopping")
			return
		}

		n, err := w.queue.Len(ctx)
		if err != nil {
			log.Printf("batch writer: queue length check failed: %v", err)
			if !sleep(ctx, w.pollInterval) {
				return
			}
			continue
		}

		if n == 0 {
			if !sleep(ctx, w.pollInterval) {
				return
			}
			continue
		}

		flushed, err := w.flushOnce(ctx)
		if err != nil {
			log.Printf("batch writer: flush failed: %v", err)
			if !sleep(ctx, w.pollInterval) {
				return
			}
			continue
		}
		log.Printf("flushed %d attendance rows", flushed)

		if !sleep(ctx, postFlushPause) {
			return
		}
	}
}

// flushOnce drains one bounded batch, upserts it in a single transaction and
// invalidates the affected cache entries. On upsert failure the drained
// entries are parked on the dead-letter list; they are already gone from the
// main queue and must not be silently lost.
func (w *Writer) flushOnce(ctx context.Context) (int, error) {
	events, err := w.queue.DrainUpTo(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	compacted := compact(events)
	if err := w.store.UpsertAttendanceBatch(ctx, compacted); err != nil {
		if dlErr := w.queue.DeadLetter(ctx, events); dlErr != nil {
			log.Printf("batch writer: dead-letter failed, %d entries lost: %v", len(events), dlErr)
		}
		return 0, err
	}

	// Best-effort invalidation: a missed delete ages out via the cache TTL.
	for _, ev := range compacted {
		if err := w.cache.DeleteAttendance(ctx, ev.UserID, ev.Day); err != nil {
			log.Printf("batch writer: cache invalidation failed for %s/%s: %v", ev.UserID, ev.Day, err)
		}
	}

	return len(events), nil
}

// compact keeps only the last event per (user_id, day), preserving enqueue
// order semantics: within a batch the latest enqueued event wins.
func compact(events []models.AttendanceEvent) []models.AttendanceEvent {
	last := make(map[string]int, len(events))
	for i, ev := range events {
		last[ev.UserID+"\x00"+ev.Day] = i
	}

	out := make([]models.AttendanceEvent, 0, len(last))
	for i, ev := range events {
		if last[ev.UserID+"\x00"+ev.Day] == i {
			out = append(out, ev)
		}
	}
	return out
}
