// Package models defines the shared data types for pulsekey runs.
package models

import (
	"encoding/json"
	"strings"
	"time"
)

// EventType categorizes run events.
type EventType string

const (
	// Run lifecycle
	EventTypeRunStarted   EventType = "run.started"
	EventTypeRunCompleted EventType = "run.completed"
	EventTypeRunCanceled  EventType = "run.canceled"

	// Key delivery
	EventTypeKeySent   EventType = "key.sent"
	EventTypeKeyFailed EventType = "key.failed"

	// Target process
	EventTypeProcessAcquired EventType = "process.acquired"
	EventTypeProcessLost     EventType = "process.lost"

	// Pause overlay
	EventTypePauseToggled EventType = "pause.toggled"
)

// Event is one append-only run log entry.
type Event struct {
	// ID is the unique identifier for the event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type categorizes the event.
	Type EventType `json:"type"`

	// PID is the target process id, when the event relates to one.
	PID int32 `json:"pid,omitempty"`

	// Key is the key token involved, when the event relates to one.
	Key string `json:"key,omitempty"`

	// Payload contains event-specific data.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate checks required event fields.
func (e *Event) Validate() error {
	if strings.TrimSpace(string(e.Type)) == "" {
		return ErrMissingEventType
	}
	return nil
}

// KeySentPayload is attached to key.sent events.
type KeySentPayload struct {
	Driver string `json:"driver"` // "sequence" or "independent"
	Step   int    `json:"step,omitempty"`
	Pass   int    `json:"pass,omitempty"`
}

// KeyFailedPayload is attached to key.failed events.
type KeyFailedPayload struct {
	Driver string `json:"driver"`
	Reason string `json:"reason"`
}

// ProcessPayload is attached to process.acquired / process.lost events.
type ProcessPayload struct {
	Name    string `json:"name"`
	Retries int    `json:"retries,omitempty"`
}

// PausePayload is attached to pause.toggled events.
type PausePayload struct {
	Paused bool `json:"paused"`
}

// RunPayload is attached to run lifecycle events.
type RunPayload struct {
	ProcessName string `json:"process_name"`
	Reason      string `json:"reason,omitempty"`
}
