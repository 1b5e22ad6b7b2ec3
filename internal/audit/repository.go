package audit

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Schema is the DDL for the audit table.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_logs (
	id TEXT PRIMARY KEY,
	event_type TEXT NOT NULL,
	user_id TEXT,
	action TEXT NOT NULL,
	details TEXT,
	ip TEXT,
	payload_digest TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS audit_logs_type_idx ON audit_logs (event_type, created_at DESC);
`

// Repository writes audit logs to Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs an audit repository.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		return nil
	}
	return &Repository{db: db}
}

// EnsureSchema applies Schema.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if r == nil || r.db == nil {
		return errors.New("audit repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, Schema)
	return err
}

// Record writes an audit entry.
func (r *Repository) Record(ctx context.Context, event Event) error {
	if r == nil || r.db == nil {
		return errors.New("audit repo: nil db")
	}
	if err := prepare(&event, time.Now()); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO audit_logs (
	id, event_type, user_id, action, details, ip, payload_digest, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8
)`, event.ID, string(event.EventType), event.UserID, event.Action, event.Details, event.IP, event.PayloadDigest, event.CreatedAt)
	return err
}

// List returns events newest first.
func (r *Repository) List(ctx context.Context, eventType EventType, limit int) ([]Event, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("audit repo: nil db")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}

	var (
		rows *sql.Rows
		err  error
	)
	if eventType == "" {
		rows, err = r.db.QueryContext(ctx, `
SELECT id, event_type, user_id, action, details, ip, payload_digest, created_at
FROM audit_logs
ORDER BY created_at DESC
LIMIT $1`, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, `
SELECT id, event_type, user_id, action, details, ip, payload_digest, created_at
FROM audit_logs
WHERE event_type = $1
ORDER BY created_at DESC
LIMIT $2`, string(eventType), limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event     Event
			eventKind string
			userID    sql.NullString
			details   sql.NullString
			ip        sql.NullString
			digest    sql.NullString
		)
		if err := rows.Scan(&event.ID, &eventKind, &userID, &event.Action, &details, &ip, &digest, &event.CreatedAt); err != nil {
			return nil, err
		}
		event.EventType = EventType(eventKind)
		event.UserID = userID.String
		event.Details = details.String
		event.IP = ip.String
		event.PayloadDigest = digest.String
		event.CreatedAt = event.CreatedAt.UTC()
		events = append(events, event)
	}
	return events, rows.Err()
}
