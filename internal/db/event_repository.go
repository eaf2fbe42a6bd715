package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pulsekey/pulsekey/internal/models"
)

// Event repository errors.
var (
	ErrInvalidEvent = errors.New("invalid event")
)

// timeLayout keeps a fixed-width fraction so the lexical order of the TEXT
// timestamp column matches chronological order. RFC3339Nano trims trailing
// zeros, which would sort "...00.5Z" before "...00Z".
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// EventRepository handles event persistence.
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// EventQuery defines filters for querying events.
type EventQuery struct {
	Type  *models.EventType // Filter by event type
	Since *time.Time        // Events at or after this time (inclusive)
	Limit int               // Max results to return (0 = no limit)
}

// Create appends a new event to the log. ID and Timestamp are filled in
// when absent.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (id, timestamp, type, pid, key, payload) VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Timestamp.UTC().Format(timeLayout),
		string(event.Type),
		event.PID,
		event.Key,
		[]byte(event.Payload),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// Query returns events matching the filters, newest first.
func (r *EventRepository) Query(ctx context.Context, q EventQuery) ([]*models.Event, error) {
	query := `SELECT id, timestamp, type, pid, key, payload FROM events WHERE 1=1`
	var args []any

	if q.Type != nil {
		query += ` AND type = ?`
		args = append(args, string(*q.Type))
	}
	if q.Since != nil {
		query += ` AND timestamp >= ?`
		args = append(args, q.Since.UTC().Format(timeLayout))
	}
	query += ` ORDER BY timestamp DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func scanEvent(rows *sql.Rows) (*models.Event, error) {
	var (
		event     models.Event
		timestamp string
		eventType string
		payload   []byte
	)
	if err := rows.Scan(&event.ID, &timestamp, &eventType, &event.PID, &event.Key, &payload); err != nil {
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return nil, fmt.Errorf("invalid event timestamp %q: %w", timestamp, err)
	}
	event.Timestamp = ts
	event.Type = models.EventType(eventType)
	event.Payload = payload
	return &event, nil
}
