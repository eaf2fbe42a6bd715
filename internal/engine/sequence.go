package engine

import (
	"context"
	"errors"
	"time"

	"github.com/pulsekey/pulsekey/internal/injector"
	"github.com/pulsekey/pulsekey/internal/keymap"
)

// runSequence executes the configured key sequence in strict order: press
// the step's key, wait its interval, advance. With loop_sequence false it
// performs a single pass; with repeat_count > 0 exactly that many passes;
// otherwise it loops until the run is canceled.
func (e *Engine) runSequence(ctx context.Context) error {
	for pass := 1; ; pass++ {
		for i, step := range e.cfg.KeySequence {
			if err := e.deliver(ctx, step.Key, DriverSequence, i, pass); err != nil {
				return err
			}
			if err := e.sleep(ctx, step.IntervalAfter.Duration); err != nil {
				return err
			}
		}

		e.statsMu.Lock()
		e.stats.SequencePasses++
		e.statsMu.Unlock()
		e.logger.Debug().Int("pass", pass).Msg("sequence pass completed")

		if !e.cfg.LoopSequence {
			return nil
		}
		if e.cfg.RepeatCount > 0 && pass >= e.cfg.RepeatCount {
			return nil
		}
	}
}

// deliver performs one scheduled injection: wait out the pause overlay,
// resolve the token, inject, and on a stale handle refresh once and retry
// the same step. Failures after the retry are recorded and swallowed so the
// schedule keeps going; only cancellation and fatal acquisition exhaustion
// propagate.
func (e *Engine) deliver(ctx context.Context, token, driver string, step, pass int) error {
	// Pause suspends delivery without resetting progress. Elapsed waits are
	// not tracked across a pause: a wait interrupted by pause restarts in
	// full on resume (conservative policy, documented).
	if err := e.pauseSt.Wait(ctx); err != nil {
		return err
	}

	chord, err := keymap.Resolve(token)
	if err != nil {
		// Unreachable after config validation; skip the action rather
		// than kill the run.
		e.logger.Warn().Err(err).Str("key", token).Msg("skipping unresolvable key")
		e.recordFailure(ctx, token, driver, err)
		return nil
	}

	target := e.cell.Get()
	err = e.injector.Inject(ctx, target, chord)

	if errors.Is(err, injector.ErrTargetGone) {
		e.logger.Warn().
			Int32("pid", target.PID).
			Str("key", token).
			Msg("target gone, re-acquiring process")
		e.log.ProcessLost(ctx, target)

		refreshed, refreshErr := e.cell.Refresh(ctx, target)
		if refreshErr != nil {
			// Acquisition exhaustion is fatal for the whole run.
			return refreshErr
		}
		e.statsMu.Lock()
		e.stats.Reacquisitions++
		e.statsMu.Unlock()
		e.log.ProcessAcquired(ctx, refreshed, e.cfg.MaxRetries)

		// Retry the same step once against the fresh handle.
		target = refreshed
		err = e.injector.Inject(ctx, target, chord)
	}

	now := time.Now().UTC()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.logger.Warn().Err(err).
			Str("driver", driver).
			Str("key", token).
			Int32("pid", target.PID).
			Msg("key injection failed")
		e.recordFailure(ctx, token, driver, err)
		e.emit(DeliveryEvent{Driver: driver, Key: token, PID: target.PID, Error: err.Error(), Timestamp: now})
		return nil
	}

	e.statsMu.Lock()
	e.stats.TotalInjections++
	e.stats.LastInjectionAt = &now
	e.statsMu.Unlock()
	e.log.KeySent(ctx, target, token, driver, step, pass)
	e.emit(DeliveryEvent{Driver: driver, Key: token, PID: target.PID, Success: true, Timestamp: now})
	e.logger.Debug().
		Str("driver", driver).
		Str("key", token).
		Int32("pid", target.PID).
		Msg("key sent")

	e.restoreFocus(ctx)
	return nil
}

func (e *Engine) recordFailure(ctx context.Context, token, driver string, err error) {
	e.statsMu.Lock()
	e.stats.TotalInjections++
	e.stats.FailedInjections++
	e.statsMu.Unlock()
	e.log.KeyFailed(ctx, e.cell.Get(), token, driver, err.Error())
}

// restoreFocus hands focus back to whatever window held it before the
// injection. Best effort: failures are logged and never fail the step.
func (e *Engine) restoreFocus(ctx context.Context) {
	if !e.cfg.RestoreFocus {
		return
	}
	restorer, ok := e.injector.(injector.FocusRestorer)
	if !ok {
		return
	}
	if err := restorer.RestoreFocus(ctx); err != nil && ctx.Err() == nil {
		e.logger.Debug().Err(err).Msg("failed to restore focus")
	}
}
