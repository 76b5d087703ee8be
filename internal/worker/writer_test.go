package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/eventdesk/checkin-service/internal/models"
)

////////////////////////////////////////////////////////////////////////////////
// IN-MEMORY FAKES
//
// Mutex-guarded stand-ins for the Redis queue, the Postgres store and the
// cache, so the loop's batching and failure semantics can be tested without
// any backing service.
////////////////////////////////////////////////////////////////////////////////

type memQueue struct {
	mu      sync.Mutex
	entries []models.AttendanceEvent
	dead    []models.AttendanceEvent
}

func (q *memQueue) push(evs ...models.AttendanceEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, evs...)
}

func (q *memQueue) Len(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.entries)), nil
}

func (q *memQueue) DrainUpTo(_ context.Context, n int) ([]models.AttendanceEvent, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n > len(q.entries) {
		n = len(q.entries)
	}
	out := append([]models.AttendanceEvent(nil), q.entries[:n]...)
	q.entries = q.entries[n:]
	return out, nil
}

func (q *memQueue) DeadLetter(_ context.Context, evs []models.AttendanceEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dead = append(q.dead, evs...)
	return nil
}

type memStore struct {
	mu      sync.Mutex
	rows    map[string]models.AttendanceEvent
	batches [][]models.AttendanceEvent
	err     error
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]models.AttendanceEvent{}}
}

func (s *memStore) UpsertAttendanceBatch(_ context.Context, evs []models.AttendanceEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, evs)
	for _, ev := range evs {
		s.rows[ev.UserID+"/"+ev.Day] = ev
	}
	return nil
}

type memCache struct {
	mu      sync.Mutex
	deleted []string
}

func (c *memCache) DeleteAttendance(_ context.Context, userID, day string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, userID+"/"+day)
	return nil
}

func event(user, day string, meta map[string]any) models.AttendanceEvent {
	return models.AttendanceEvent{
		UserID:    user,
		Day:       day,
		CheckinTS: time.Now().UTC(),
		Meta:      meta,
	}
}

////////////////////////////////////////////////////////////////////////////////
// BATCHING BEHAVIOR
////////////////////////////////////////////////////////////////////////////////

// 350 queued entries with BATCH_SIZE=200 must flush as 200 then 150.
func TestFlushOnce_DrainsBoundedBatches(t *testing.T) {
	q := &memQueue{}
	for i := 0; i < 350; i++ {
		q.push(event(fmt.Sprintf("u%d", i), "2026-08-31", nil))
	}
	st := newMemStore()
	w := New(q, st, &memCache{}, 200, time.Millisecond)

	n1, err := w.flushOnce(context.Background())
	if err != nil {
		t.Fatalf("first flush: %v", err)
	}
	n2, err := w.flushOnce(context.Background())
	if err != nil {
		t.Fatalf("second flush: %v", err)
	}

	if n1 != 200 || n2 != 150 {
		t.Fatalf("expected 200 then 150 flushed, got %d then %d", n1, n2)
	}
	if remaining, _ := q.Len(context.Background()); remaining != 0 {
		t.Fatalf("queue not drained, %d left", remaining)
	}
	if len(st.batches) != 2 {
		t.Fatalf("expected 2 upsert batches, got %d", len(st.batches))
	}
}

// An empty queue is a no-op, not an error.
func TestFlushOnce_EmptyQueue(t *testing.T) {
	st := newMemStore()
	w := New(&memQueue{}, st, &memCache{}, 200, time.Millisecond)

	n, err := w.flushOnce(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("expected (0, nil), got (%d, %v)", n, err)
	}
	if len(st.batches) != 0 {
		t.Fatal("store touched for an empty drain")
	}
}

// Two events for the same (user, day) in one batch: the later enqueued one
// determines the stored row.
func TestFlushOnce_LastWriteWinsWithinBatch(t *testing.T) {
	q := &memQueue{}
	q.push(event("u1", "2026-08-31", map[string]any{"gate": "A"}))
	q.push(event("u1", "2026-08-31", map[string]any{"gate": "B"}))
	st := newMemStore()
	w := New(q, st, &memCache{}, 200, time.Millisecond)

	if _, err := w.flushOnce(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if len(st.batches) != 1 || len(st.batches[0]) != 1 {
		t.Fatalf("expected one compacted upsert, got %v", st.batches)
	}
	row := st.rows["u1/2026-08-31"]
	if row.Meta["gate"] != "B" {
		t.Fatalf("expected last event's meta to win, got %v", row.Meta)
	}
}

// Affected cache entries are invalidated after a committed flush.
func TestFlushOnce_InvalidatesCacheEntries(t *testing.T) {
	q := &memQueue{}
	q.push(event("u1", "2026-08-31", nil))
	q.push(event("u2", "2026-08-31", nil))
	c := &memCache{}
	w := New(q, newMemStore(), c, 200, time.Millisecond)

	if _, err := w.flushOnce(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if len(c.deleted) != 2 {
		t.Fatalf("expected 2 invalidations, got %v", c.deleted)
	}
}

////////////////////////////////////////////////////////////////////////////////
// FAILURE SEMANTICS
////////////////////////////////////////////////////////////////////////////////

// A failed upsert parks the already-drained entries on the dead-letter list
// instead of losing them.
func TestFlushOnce_DeadLettersOnUpsertFailure(t *testing.T) {
	q := &memQueue{}
	q.push(event("u1", "2026-08-31", nil))
	q.push(event("u2", "2026-08-31", nil))
	st := newMemStore()
	st.err = errors.New("db down")
	c := &memCache{}
	w := New(q, st, c, 200, time.Millisecond)

	if _, err := w.flushOnce(context.Background()); err == nil {
		t.Fatal("expected flush error")
	}

	if len(q.dead) != 2 {
		t.Fatalf("expected 2 dead-lettered entries, got %d", len(q.dead))
	}
	if len(st.rows) != 0 {
		t.Fatal("failed batch must leave no rows behind")
	}
	if len(c.deleted) != 0 {
		t.Fatal("cache must not be invalidated for a failed flush")
	}
}

// Run keeps going after a failed batch and flushes it once the store recovers.
func TestRun_SurvivesFlushFailure(t *testing.T) {
	q := &memQueue{}
	q.push(event("u1", "2026-08-31", nil))
	st := newMemStore()
	st.mu.Lock()
	st.err = errors.New("db down")
	st.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	w := New(q, st, &memCache{}, 10, time.Millisecond)
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	st.mu.Lock()
	st.err = nil
	st.mu.Unlock()
	q.push(event("u2", "2026-08-31", nil))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		st.mu.Lock()
		flushed := len(st.rows) > 0
		st.mu.Unlock()
		if flushed {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.rows["u2/2026-08-31"]; !ok {
		t.Fatal("worker did not recover after store came back")
	}
}

////////////////////////////////////////////////////////////////////////////////
// COMPACTION
////////////////////////////////////////////////////////////////////////////////

func TestCompact_KeepsDistinctKeysAndLastDuplicate(t *testing.T) {
	evs := []models.AttendanceEvent{
		event("u1", "2026-08-30", map[string]any{"n": "1"}),
		event("u1", "2026-08-31", map[string]any{"n": "2"}),
		event("u1", "2026-08-30", map[string]any{"n": "3"}),
		event("u2", "2026-08-30", map[string]any{"n": "4"}),
	}

	out := compact(evs)
	if len(out) != 3 {
		t.Fatalf("expected 3 compacted events, got %d", len(out))
	}
	for _, ev := range out {
		if ev.UserID == "u1" && ev.Day == "2026-08-30" && ev.Meta["n"] != "3" {
			t.Fatalf("expected later duplicate to win, got %v", ev.Meta)
		}
	}
}
