// Package events records pulsekey run events in the append-only log.
package events

import (
	"context"
	"encoding/json"

	"github.com/pulsekey/pulsekey/internal/logging"
	"github.com/pulsekey/pulsekey/internal/models"
	"github.com/pulsekey/pulsekey/internal/process"
)

// Repository is the minimal interface needed to write events.
type Repository interface {
	Create(ctx context.Context, event *models.Event) error
}

// Log appends typed run events. A nil *Log discards everything, so callers
// never have to branch on whether persistence is configured. Repository
// failures are logged, never propagated: the event log must not be able to
// stall key delivery.
type Log struct {
	repo Repository
}

// NewLog wraps a repository. repo may be nil.
func NewLog(repo Repository) *Log {
	if repo == nil {
		return nil
	}
	return &Log{repo: repo}
}

// RunStarted records the start of a delivery run.
func (l *Log) RunStarted(ctx context.Context, processName string) {
	l.append(ctx, &models.Event{Type: models.EventTypeRunStarted},
		models.RunPayload{ProcessName: processName})
}

// RunCompleted records natural completion of a run.
func (l *Log) RunCompleted(ctx context.Context, processName string) {
	l.append(ctx, &models.Event{Type: models.EventTypeRunCompleted},
		models.RunPayload{ProcessName: processName})
}

// RunCanceled records an externally canceled run.
func (l *Log) RunCanceled(ctx context.Context, processName, reason string) {
	l.append(ctx, &models.Event{Type: models.EventTypeRunCanceled},
		models.RunPayload{ProcessName: processName, Reason: reason})
}

// KeySent records a successful injection.
func (l *Log) KeySent(ctx context.Context, target process.Handle, key, driver string, step, pass int) {
	l.append(ctx, &models.Event{Type: models.EventTypeKeySent, PID: target.PID, Key: key},
		models.KeySentPayload{Driver: driver, Step: step, Pass: pass})
}

// KeyFailed records an injection failure.
func (l *Log) KeyFailed(ctx context.Context, target process.Handle, key, driver, reason string) {
	l.append(ctx, &models.Event{Type: models.EventTypeKeyFailed, PID: target.PID, Key: key},
		models.KeyFailedPayload{Driver: driver, Reason: reason})
}

// ProcessAcquired records a successful (re-)acquisition.
func (l *Log) ProcessAcquired(ctx context.Context, target process.Handle, retries int) {
	l.append(ctx, &models.Event{Type: models.EventTypeProcessAcquired, PID: target.PID},
		models.ProcessPayload{Name: target.Name, Retries: retries})
}

// ProcessLost records a stale handle detected during injection.
func (l *Log) ProcessLost(ctx context.Context, target process.Handle) {
	l.append(ctx, &models.Event{Type: models.EventTypeProcessLost, PID: target.PID},
		models.ProcessPayload{Name: target.Name})
}

// PauseToggled records a pause/resume transition.
func (l *Log) PauseToggled(ctx context.Context, paused bool) {
	l.append(ctx, &models.Event{Type: models.EventTypePauseToggled},
		models.PausePayload{Paused: paused})
}

func (l *Log) append(ctx context.Context, event *models.Event, payload any) {
	if l == nil {
		return
	}

	logger := logging.Component("events")

	data, err := json.Marshal(payload)
	if err != nil {
		logger.Warn().Err(err).Str("type", string(event.Type)).Msg("failed to marshal event payload")
		return
	}
	event.Payload = data

	if err := l.repo.Create(ctx, event); err != nil {
		logger.Warn().Err(err).Str("type", string(event.Type)).Msg("failed to append event")
	}
}
