// Package engine drives timed key delivery against a target process. It
// runs the configured key sequence and every independent key concurrently,
// honoring the shared pause overlay, re-acquiring the target when it
// disappears, and reporting everything it does as events and stats.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pulsekey/pulsekey/internal/config"
	"github.com/pulsekey/pulsekey/internal/events"
	"github.com/pulsekey/pulsekey/internal/injector"
	"github.com/pulsekey/pulsekey/internal/logging"
	"github.com/pulsekey/pulsekey/internal/pause"
	"github.com/pulsekey/pulsekey/internal/process"
)

// Engine errors.
var (
	ErrEngineAlreadyRunning = errors.New("engine already running")
)

// Driver names used in events and stats.
const (
	DriverSequence    = "sequence"
	DriverIndependent = "independent"
)

// Options contains engine tuning knobs. The zero value is usable.
type Options struct {
	// Backoff is the wait between acquisition attempts.
	// Default: process.DefaultBackoff.
	Backoff time.Duration

	// EventBuffer is the capacity of the delivery event channel.
	// Default: 100.
	EventBuffer int
}

func (o *Options) applyDefaults() {
	if o.Backoff <= 0 {
		o.Backoff = process.DefaultBackoff
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = 100
	}
}

// DeliveryEvent describes one injection attempt.
type DeliveryEvent struct {
	// Driver is the driver that attempted the injection.
	Driver string

	// Key is the configured key token.
	Key string

	// PID is the target process at the time of the attempt.
	PID int32

	// Success indicates whether the injection landed.
	Success bool

	// Error contains failure details when Success is false.
	Error string

	// Timestamp is when the attempt finished.
	Timestamp time.Time
}

// Stats contains run statistics.
type Stats struct {
	// Running indicates whether a run is active.
	Running bool

	// StartedAt is when the run started.
	StartedAt *time.Time

	// TotalInjections counts attempted injections.
	TotalInjections int64

	// FailedInjections counts attempts that did not land.
	FailedInjections int64

	// Reacquisitions counts successful handle refreshes.
	Reacquisitions int64

	// SequencePasses counts completed passes over the key sequence.
	SequencePasses int64

	// LastInjectionAt is when the last injection landed.
	LastInjectionAt *time.Time
}

// Engine orchestrates the delivery drivers for one run.
type Engine struct {
	cfg      *config.Config
	opts     Options
	locator  process.Locator
	injector injector.Injector
	pauseSt  *pause.State
	log      *events.Log
	logger   zerolog.Logger

	cell *HandleCell

	mu      sync.Mutex
	running bool

	statsMu sync.RWMutex
	stats   Stats

	eventCh chan DeliveryEvent
}

// New creates an engine for a validated config. log may be nil.
func New(cfg *config.Config, loc process.Locator, inj injector.Injector, pauseState *pause.State, log *events.Log, opts Options) *Engine {
	opts.applyDefaults()

	return &Engine{
		cfg:      cfg,
		opts:     opts,
		locator:  loc,
		injector: inj,
		pauseSt:  pauseState,
		log:      log,
		logger:   logging.Component("engine"),
		cell:     NewHandleCell(loc, cfg.ProcessName, cfg.MaxRetries, opts.Backoff),
		eventCh:  make(chan DeliveryEvent, opts.EventBuffer),
	}
}

// Run acquires the target and drives the schedule until every driver is
// terminal, acquisition fatally fails, or ctx is canceled. Cancellation is
// not an error: the run ends with a run.canceled event and a nil return.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrEngineAlreadyRunning
	}
	e.running = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	now := time.Now().UTC()
	e.statsMu.Lock()
	e.stats = Stats{Running: true, StartedAt: &now}
	e.statsMu.Unlock()
	defer func() {
		e.statsMu.Lock()
		e.stats.Running = false
		e.statsMu.Unlock()
	}()

	handle, err := process.Acquire(ctx, e.locator, e.cfg.ProcessName, e.cfg.MaxRetries, e.opts.Backoff)
	if err != nil {
		return err
	}
	e.cell.Set(handle)
	e.log.ProcessAcquired(ctx, handle, e.cfg.MaxRetries)
	e.log.RunStarted(ctx, e.cfg.ProcessName)
	e.logger.Info().
		Int32("pid", handle.PID).
		Str("process", handle.Name).
		Int("sequence_steps", len(e.cfg.KeySequence)).
		Int("independent_keys", len(e.cfg.IndependentKeys)).
		Msg("delivery run starting")

	group, gctx := errgroup.WithContext(ctx)

	// Record pause transitions for the event log. The hotkey listener is
	// the writer; the engine only observes. The subscription lives only as
	// long as this run.
	pauseChanges := e.pauseSt.Changes()
	defer e.pauseSt.Unsubscribe(pauseChanges)
	group.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case paused := <-pauseChanges:
				e.log.PauseToggled(gctx, paused)
			}
		}
	})

	if len(e.cfg.KeySequence) > 0 {
		group.Go(func() error {
			err := e.runSequence(gctx)
			if err == nil && len(e.cfg.IndependentKeys) == 0 {
				// Bounded sequence with nothing else running: the whole
				// run is done, unblock the pause watcher.
				return errRunComplete
			}
			return err
		})
	}
	for _, ik := range e.cfg.IndependentKeys {
		group.Go(func() error {
			return e.runIndependent(gctx, ik)
		})
	}

	err = group.Wait()
	switch {
	case err == nil || errors.Is(err, errRunComplete):
		e.logger.Info().Msg("delivery run completed")
		e.log.RunCompleted(context.WithoutCancel(ctx), e.cfg.ProcessName)
		return nil
	case errors.Is(err, context.Canceled):
		e.logger.Info().Msg("delivery run canceled")
		e.log.RunCanceled(context.WithoutCancel(ctx), e.cfg.ProcessName, "canceled")
		return nil
	default:
		e.logger.Error().Err(err).Msg("delivery run failed")
		e.log.RunCanceled(context.WithoutCancel(ctx), e.cfg.ProcessName, err.Error())
		return err
	}
}

// errRunComplete unwinds the errgroup once a bounded schedule finishes.
var errRunComplete = errors.New("run complete")

// Target returns the current target handle.
func (e *Engine) Target() process.Handle {
	return e.cell.Get()
}

// Running reports whether a run is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Stats returns current run statistics.
func (e *Engine) Stats() Stats {
	e.statsMu.RLock()
	defer e.statsMu.RUnlock()
	return e.stats
}

// Events returns the channel of delivery events. Events are dropped rather
// than blocking delivery when no one is reading.
func (e *Engine) Events() <-chan DeliveryEvent {
	return e.eventCh
}

func (e *Engine) emit(event DeliveryEvent) {
	select {
	case e.eventCh <- event:
	default:
	}
}

// sleep waits for d or until ctx is canceled.
func (e *Engine) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
