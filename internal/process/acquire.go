package process

import (
	"context"
	"fmt"
	"time"

	"github.com/pulsekey/pulsekey/internal/logging"
)

// DefaultBackoff is the wait between acquisition attempts.
const DefaultBackoff = time.Second

// NotFoundError indicates acquisition exhausted all lookup attempts.
type NotFoundError struct {
	Name    string
	Retries int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("process '%s' not found after %d attempts", e.Name, e.Retries)
}

// Acquire resolves name to a Handle, retrying up to maxRetries lookups with
// backoff between attempts. The backoff wait is timer-based and returns
// promptly when ctx is canceled, so it never stalls unrelated tasks.
// Exhausting all attempts yields a NotFoundError.
func Acquire(ctx context.Context, loc Locator, name string, maxRetries int, backoff time.Duration) (Handle, error) {
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	logger := logging.Component("process")

	for attempt := 1; attempt <= maxRetries; attempt++ {
		handle, found, err := loc.Find(ctx, name)
		if err != nil {
			logger.Warn().Err(err).Int("attempt", attempt).Msg("process lookup failed")
		} else if found {
			logger.Debug().
				Int32("pid", handle.PID).
				Str("name", handle.Name).
				Int("attempt", attempt).
				Msg("process acquired")
			return handle, nil
		}

		if attempt == maxRetries {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Handle{}, ctx.Err()
		case <-timer.C:
		}
	}

	return Handle{}, &NotFoundError{Name: name, Retries: maxRetries}
}
