package engine

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pulsekey/pulsekey/internal/process"
)

// HandleCell holds the current target handle shared by all delivery
// drivers. Readers take snapshots; a driver whose injection reports the
// target gone requests a refresh. Concurrent refresh requests collapse into
// a single acquisition and every waiter observes the same replacement.
type HandleCell struct {
	locator    process.Locator
	name       string
	maxRetries int
	backoff    time.Duration

	mu      sync.RWMutex
	current process.Handle

	group singleflight.Group
}

// NewHandleCell creates a cell that re-acquires via loc using the run's
// retry policy.
func NewHandleCell(loc process.Locator, name string, maxRetries int, backoff time.Duration) *HandleCell {
	return &HandleCell{
		locator:    loc,
		name:       name,
		maxRetries: maxRetries,
		backoff:    backoff,
	}
}

// Get returns a snapshot of the current handle.
func (c *HandleCell) Get() process.Handle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Set replaces the current handle.
func (c *HandleCell) Set(handle process.Handle) {
	c.mu.Lock()
	c.current = handle
	c.mu.Unlock()
}

// Refresh replaces a stale handle by re-acquiring the process. Only the
// first caller performs the lookup; callers arriving while a refresh is in
// flight share its result. A caller whose stale snapshot has already been
// replaced gets the current handle back without any lookup.
func (c *HandleCell) Refresh(ctx context.Context, stale process.Handle) (process.Handle, error) {
	if current := c.Get(); current.PID != stale.PID {
		return current, nil
	}

	result, err, _ := c.group.Do("refresh", func() (any, error) {
		// The losing racer of a previous flight may land here after the
		// handle was already replaced.
		if current := c.Get(); current.PID != stale.PID {
			return current, nil
		}

		handle, err := process.Acquire(ctx, c.locator, c.name, c.maxRetries, c.backoff)
		if err != nil {
			return process.Handle{}, err
		}
		c.Set(handle)
		return handle, nil
	})
	if err != nil {
		return process.Handle{}, err
	}
	return result.(process.Handle), nil
}
