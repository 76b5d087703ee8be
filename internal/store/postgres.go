package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventdesk/checkin-service/internal/models"
)

// schemaSQL is embedded so the service can self-bootstrap its database schema.
//
//go:embed schema.sql
var schemaSQL string

// PostgresStore is the system of record for attendance, tasks and meals.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and fails fast if DB is unreachable.
func NewPostgresStore(dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema() error {
	_, err := p.pool.Exec(context.Background(), schemaSQL)
	return err
}

// Ping is used by readiness endpoint to validate DB connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

// UpsertAttendanceBatch writes a drained batch in one transaction on one
// pooled connection. Incoming values overwrite existing rows wholesale;
// (user_id, day) uniqueness is enforced here, not in the application.
func (p *PostgresStore) UpsertAttendanceBatch(ctx context.Context, events []models.AttendanceEvent) error {
	if len(events) == 0 {
		return nil
	}

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, ev := range events {
		meta := ev.Meta
		if meta == nil {
			meta = map[string]any{}
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("marshal meta for %s/%s: %w", ev.UserID, ev.Day, err)
		}
		batch.Queue(`
			INSERT INTO attendance (user_id, day, checkin_ts, meta)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, day) DO UPDATE
			SET checkin_ts = EXCLUDED.checkin_ts, meta = EXCLUDED.meta
		`, ev.UserID, ev.Day, ev.CheckinTS, metaJSON)
	}

	br := tx.SendBatch(ctx, batch)
	for range events {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("batch upsert: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	return tx.Commit(ctx)
}

// GetAttendance returns the attendance row for (userID, day).
// Absence is (zero, false, nil): no attendance recorded is a normal outcome.
func (p *PostgresStore) GetAttendance(ctx context.Context, userID, day string) (models.AttendanceEvent, bool, error) {
	var (
		rec      models.AttendanceEvent
		metaJSON []byte
	)
	err := p.pool.QueryRow(ctx, `
		SELECT user_id, to_char(day, 'YYYY-MM-DD'), checkin_ts, meta
		FROM attendance
		WHERE user_id = $1 AND day = $2
	`, userID, day).Scan(&rec.UserID, &rec.Day, &rec.CheckinTS, &metaJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.AttendanceEvent{}, false, nil
	}
	if err != nil {
		return models.AttendanceEvent{}, false, err
	}
	if err := json.Unmarshal(metaJSON, &rec.Meta); err != nil {
		return models.AttendanceEvent{}, false, fmt.Errorf("decode meta: %w", err)
	}
	return rec, true, nil
}

// UpsertTask writes a task synchronously and returns the persisted row,
// including the server-assigned last_updated timestamp.
func (p *PostgresStore) UpsertTask(ctx context.Context, userID, taskName, status string, data map[string]any) (models.TaskRecord, error) {
	if data == nil {
		data = map[string]any{}
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return models.TaskRecord{}, fmt.Errorf("marshal data: %w", err)
	}

	rec := models.TaskRecord{TaskName: taskName, Status: status, Data: data}
	err = p.pool.QueryRow(ctx, `
		INSERT INTO user_tasks (user_id, task_name, status, data, last_updated)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id, task_name) DO UPDATE
		SET status = EXCLUDED.status, data = EXCLUDED.data, last_updated = now()
		RETURNING last_updated
	`, userID, taskName, status, dataJSON).Scan(&rec.LastUpdated)
	if err != nil {
		return models.TaskRecord{}, fmt.Errorf("upsert task: %w", err)
	}
	return rec, nil
}

// ListTasks returns all tasks for a user keyed by task name.
// An empty map with a nil error means the user has no tasks.
func (p *PostgresStore) ListTasks(ctx context.Context, userID string) (map[string]models.TaskRecord, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT task_name, status, data, last_updated
		FROM user_tasks
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := map[string]models.TaskRecord{}
	for rows.Next() {
		var (
			rec      models.TaskRecord
			dataJSON []byte
		)
		if err := rows.Scan(&rec.TaskName, &rec.Status, &dataJSON, &rec.LastUpdated); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(dataJSON, &rec.Data); err != nil {
			return nil, fmt.Errorf("decode data for task %s: %w", rec.TaskName, err)
		}
		tasks[rec.TaskName] = rec
	}
	return tasks, rows.Err()
}

// LookupQR resolves a QR hash to the user it is assigned to.
// found=false means the hash is unknown; an empty assignedTo with found=true
// means the code exists but has not been handed out yet.
func (p *PostgresStore) LookupQR(ctx context.Context, qrHash string) (assignedTo string, found bool, err error) {
	var assigned *string
	err = p.pool.QueryRow(ctx, `
		SELECT assigned_to FROM qr_codes WHERE qr_hash = $1
	`, qrHash).Scan(&assigned)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if assigned != nil {
		assignedTo = *assigned
	}
	return assignedTo, true, nil
}

// GetUser returns a participant profile by id.
func (p *PostgresStore) GetUser(ctx context.Context, id string) (models.User, bool, error) {
	var u models.User
	err := p.pool.QueryRow(ctx, `
		SELECT id, name, email, COALESCE(phone, ''), role
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, false, nil
	}
	if err != nil {
		return models.User{}, false, err
	}
	return u, true, nil
}

// GetMeal returns the meal row for (userID, day).
func (p *PostgresStore) GetMeal(ctx context.Context, userID, day string) (models.MealRecord, bool, error) {
	var m models.MealRecord
	err := p.pool.QueryRow(ctx, `
		SELECT id, user_id, to_char(date, 'YYYY-MM-DD'),
		       breakfast_consume, lunch_consume, tea_consumed,
		       COALESCE(last_updated_by, '')
		FROM meals
		WHERE user_id = $1 AND date = $2
	`, userID, day).Scan(&m.ID, &m.UserID, &m.Date, &m.Breakfast, &m.Lunch, &m.Tea, &m.LastUpdatedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.MealRecord{}, false, nil
	}
	if err != nil {
		return models.MealRecord{}, false, err
	}
	return m, true, nil
}

// CreateMealWithBreakfast inserts the day's meal row with breakfast already
// consumed. Used on a participant's first scan of the day.
func (p *PostgresStore) CreateMealWithBreakfast(ctx context.Context, userID, day, staffID string) (models.MealRecord, error) {
	m := models.MealRecord{
		UserID:        userID,
		Date:          day,
		Breakfast:     true,
		LastUpdatedBy: staffID,
	}
	err := p.pool.QueryRow(ctx, `
		INSERT INTO meals (user_id, date, breakfast_consume, last_updated_by)
		VALUES ($1, $2, TRUE, $3)
		RETURNING id
	`, userID, day, staffID).Scan(&m.ID)
	if err != nil {
		return models.MealRecord{}, fmt.Errorf("create meal: %w", err)
	}
	return m, nil
}

// MarkMeal sets one meal flag on an existing row. meal must be one of
// "breakfast", "lunch", "tea".
func (p *PostgresStore) MarkMeal(ctx context.Context, id int64, meal, staffID string) error {
	var column string
	switch meal {
	case "breakfast":
		column = "breakfast_consume"
	case "lunch":
		column = "lunch_consume"
	case "tea":
		column = "tea_consumed"
	default:
		return fmt.Errorf("unknown meal %q", meal)
	}

	_, err := p.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE meals SET %s = TRUE, last_updated_by = $2 WHERE id = $1`, column),
		id, staffID)
	return err
}
