package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eventdesk/checkin-service/internal/auth"
	"github.com/eventdesk/checkin-service/internal/models"
)

// noLimit stands in for the rate limiter in handler tests.
func noLimit(*gin.Context) {}

// newRouter builds a gin engine whose requests carry a pre-verified identity,
// bypassing token parsing. register wires the handlers under test.
func newRouter(userID, role string, register func(r gin.IRoutes)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/")
	g.Use(func(c *gin.Context) {
		if userID != "" {
			auth.SetUser(c, userID, role)
		}
	})
	register(g)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, payload any) (int, map[string]any) {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("invalid response JSON %q: %v", w.Body.String(), err)
		}
	}
	return w.Code, out
}

////////////////////////////////////////////////////////////////////////////////
// FAKES
////////////////////////////////////////////////////////////////////////////////

type fakeQueue struct {
	mu     sync.Mutex
	events []models.AttendanceEvent
	err    error
}

func (q *fakeQueue) Append(_ context.Context, ev models.AttendanceEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.events = append(q.events, ev)
	return nil
}

func (q *fakeQueue) Len(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return 0, q.err
	}
	return int64(len(q.events)), nil
}

type fakeAttendanceCache struct {
	mu      sync.Mutex
	entries map[string]models.AttendanceEvent
	sets    int
}

func newFakeAttendanceCache() *fakeAttendanceCache {
	return &fakeAttendanceCache{entries: map[string]models.AttendanceEvent{}}
}

func (c *fakeAttendanceCache) GetAttendance(_ context.Context, userID, day string) (models.AttendanceEvent, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.entries[userID+"/"+day]
	return rec, ok, nil
}

func (c *fakeAttendanceCache) SetAttendance(_ context.Context, rec models.AttendanceEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[rec.UserID+"/"+rec.Day] = rec
	c.sets++
	return nil
}

type fakeAttendanceStore struct {
	mu      sync.Mutex
	rows    map[string]models.AttendanceEvent
	lookups int
}

func newFakeAttendanceStore() *fakeAttendanceStore {
	return &fakeAttendanceStore{rows: map[string]models.AttendanceEvent{}}
}

func (s *fakeAttendanceStore) GetAttendance(_ context.Context, userID, day string) (models.AttendanceEvent, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	rec, ok := s.rows[userID+"/"+day]
	return rec, ok, nil
}

type fakeTaskCache struct {
	mu     sync.Mutex
	hashes map[string]map[string]models.TaskRecord
}

func newFakeTaskCache() *fakeTaskCache {
	return &fakeTaskCache{hashes: map[string]map[string]models.TaskRecord{}}
}

func (c *fakeTaskCache) TasksExist(_ context.Context, userID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.hashes[userID]) > 0, nil
}

func (c *fakeTaskCache) GetTasks(_ context.Context, userID string) (map[string]models.TaskRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string]models.TaskRecord{}
	for k, v := range c.hashes[userID] {
		out[k] = v
	}
	return out, nil
}

func (c *fakeTaskCache) SetTask(_ context.Context, userID string, rec models.TaskRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hashes[userID] == nil {
		c.hashes[userID] = map[string]models.TaskRecord{}
	}
	c.hashes[userID][rec.TaskName] = rec
	return nil
}

func (c *fakeTaskCache) SetTasks(_ context.Context, userID string, tasks map[string]models.TaskRecord) error {
	for _, rec := range tasks {
		if err := c.SetTask(context.Background(), userID, rec); err != nil {
			return err
		}
	}
	return nil
}

type fakeTaskStore struct {
	mu    sync.Mutex
	rows  map[string]map[string]models.TaskRecord
	lists int
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{rows: map[string]map[string]models.TaskRecord{}}
}

func (s *fakeTaskStore) UpsertTask(_ context.Context, userID, taskName, status string, data map[string]any) (models.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rows[userID] == nil {
		s.rows[userID] = map[string]models.TaskRecord{}
	}
	rec := models.TaskRecord{
		TaskName:    taskName,
		Status:      status,
		Data:        data,
		LastUpdated: time.Now().UTC(),
	}
	s.rows[userID][taskName] = rec
	return rec, nil
}

func (s *fakeTaskStore) ListTasks(_ context.Context, userID string) (map[string]models.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	out := map[string]models.TaskRecord{}
	for k, v := range s.rows[userID] {
		out[k] = v
	}
	return out, nil
}

type fakeMealStore struct {
	mu     sync.Mutex
	qr     map[string]string // qr_hash -> assigned user id ("" = unassigned)
	users  map[string]models.User
	meals  map[string]models.MealRecord // user/day -> record
	nextID int64
}

func newFakeMealStore() *fakeMealStore {
	return &fakeMealStore{
		qr:    map[string]string{},
		users: map[string]models.User{},
		meals: map[string]models.MealRecord{},
	}
}

func (s *fakeMealStore) LookupQR(_ context.Context, qrHash string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	assigned, ok := s.qr[qrHash]
	return assigned, ok, nil
}

func (s *fakeMealStore) GetUser(_ context.Context, id string) (models.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok, nil
}

func (s *fakeMealStore) GetMeal(_ context.Context, userID, day string) (models.MealRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meals[userID+"/"+day]
	return m, ok, nil
}

func (s *fakeMealStore) CreateMealWithBreakfast(_ context.Context, userID, day, staffID string) (models.MealRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m := models.MealRecord{
		ID:            s.nextID,
		UserID:        userID,
		Date:          day,
		Breakfast:     true,
		LastUpdatedBy: staffID,
	}
	s.meals[userID+"/"+day] = m
	return m, nil
}

func (s *fakeMealStore) MarkMeal(_ context.Context, id int64, meal, staffID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, m := range s.meals {
		if m.ID != id {
			continue
		}
		switch meal {
		case "breakfast":
			m.Breakfast = true
		case "lunch":
			m.Lunch = true
		case "tea":
			m.Tea = true
		}
		m.LastUpdatedBy = staffID
		s.meals[key] = m
		return nil
	}
	return nil
}
