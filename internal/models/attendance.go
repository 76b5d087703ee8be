package models

import "time"

// DayFormat is the calendar-date layout used for attendance days and cache keys.
const DayFormat = "2006-01-02"

// AttendanceEvent is one check-in. It is created by the ingestion endpoint,
// carried through the Redis queue, and upserted into Postgres keyed on
// (user_id, day). The same shape serves as the stored record and the cached
// value.
type AttendanceEvent struct {
	// EventID identifies one queue entry for tracing and dead-letter
	// inspection; it plays no part in the (user_id, day) upsert identity.
	EventID   string         `json:"event_id,omitempty"`
	UserID    string         `json:"user_id"`
	Day       string         `json:"day"`
	CheckinTS time.Time      `json:"checkin_ts"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// CheckinRequest is the POST /checkin payload. Everything else (identity,
// day, timestamp) is stamped server-side.
type CheckinRequest struct {
	Meta map[string]any `json:"meta,omitempty"`
}
