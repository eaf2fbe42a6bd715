package engine

import (
	"context"

	"github.com/pulsekey/pulsekey/internal/config"
)

// runIndependent presses one key on its own fixed cadence until the run is
// canceled. Each configured independent key gets its own instance; they run
// at arbitrary phase relative to the sequence driver and to each other, and
// share only the handle cell and the pause overlay.
func (e *Engine) runIndependent(ctx context.Context, key config.IndependentKey) error {
	e.logger.Debug().
		Str("key", key.Key).
		Dur("interval", key.Interval.Duration).
		Msg("independent key driver starting")

	for {
		if err := e.deliver(ctx, key.Key, DriverIndependent, 0, 0); err != nil {
			return err
		}
		if err := e.sleep(ctx, key.Interval.Duration); err != nil {
			return err
		}
	}
}
