// Package injector delivers key events to a target process.
package injector

import (
	"context"
	"errors"
	"fmt"

	"github.com/pulsekey/pulsekey/internal/keymap"
	"github.com/pulsekey/pulsekey/internal/process"
)

// Sentinel injection failures. ErrTargetGone signals that the handle is
// stale and the process must be re-acquired; everything else is logged and
// the schedule moves on.
var (
	ErrTargetGone       = errors.New("target process is gone")
	ErrPermissionDenied = errors.New("key injection denied by operating system")
)

// SendError wraps an injection failure with the key and target involved.
type SendError struct {
	Key string
	PID int32
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("failed to send key '%s' to process %d: %v", e.Key, e.PID, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// Injector performs the OS-level key-down/key-up events against a target.
type Injector interface {
	Inject(ctx context.Context, target process.Handle, chord keymap.Chord) error
}

// FocusRestorer optionally restores whichever window had focus before the
// last injection batch. Best effort: callers log failures and continue.
type FocusRestorer interface {
	RestoreFocus(ctx context.Context) error
}
