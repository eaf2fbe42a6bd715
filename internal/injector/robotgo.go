package injector

import (
	"context"
	"sync"

	"github.com/go-vgo/robotgo"
	gops "github.com/shirou/gopsutil/v3/process"

	"github.com/pulsekey/pulsekey/internal/keymap"
	"github.com/pulsekey/pulsekey/internal/logging"
	"github.com/pulsekey/pulsekey/internal/process"

	_ "github.com/go-vgo/robotgo/base" // robotgo C sources
	_ "github.com/go-vgo/robotgo/key"  // robotgo C sources
)

// Robotgo injects keys by activating the target window for its PID and
// issuing a key tap. Window activation is how the process-to-window mapping
// is resolved on every platform robotgo supports.
type Robotgo struct {
	restoreFocus bool

	mu       sync.Mutex
	prevPID  int
	havePrev bool
}

// NewRobotgo returns the robotgo-backed injector. When restoreFocus is set,
// the previously focused window is remembered so RestoreFocus can bring it
// back after an injection batch.
func NewRobotgo(restoreFocus bool) *Robotgo {
	return &Robotgo{restoreFocus: restoreFocus}
}

// Inject activates the target's window and taps the chord. A target whose
// PID no longer exists maps to ErrTargetGone so the engine re-acquires.
func (r *Robotgo) Inject(ctx context.Context, target process.Handle, chord keymap.Chord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if r.restoreFocus {
		r.rememberFocus()
	}

	if err := robotgo.ActivePid(int(target.PID)); err != nil {
		return &SendError{Key: chord.String(), PID: target.PID, Err: r.classify(ctx, target, err)}
	}

	args := make([]any, 0, 4)
	for _, mod := range chord.Mods.Names() {
		args = append(args, mod)
	}
	if err := robotgo.KeyTap(chord.Key, args...); err != nil {
		return &SendError{Key: chord.String(), PID: target.PID, Err: r.classify(ctx, target, err)}
	}

	return nil
}

// RestoreFocus re-activates the window that was focused before the last
// injection.
func (r *Robotgo) RestoreFocus(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	pid, ok := r.prevPID, r.havePrev
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return robotgo.ActivePid(pid)
}

func (r *Robotgo) rememberFocus() {
	pid := int(robotgo.GetPid())
	if pid <= 0 {
		return
	}
	r.mu.Lock()
	r.prevPID = pid
	r.havePrev = true
	r.mu.Unlock()
}

// classify turns a raw robotgo failure into one of the engine-visible
// sentinels where possible.
func (r *Robotgo) classify(ctx context.Context, target process.Handle, err error) error {
	exists, existsErr := gops.PidExistsWithContext(ctx, target.PID)
	if existsErr == nil && !exists {
		return ErrTargetGone
	}
	logger := logging.Component("injector")
	logger.Debug().
		Err(err).
		Int32("pid", target.PID).
		Msg("injection failed with target still running")
	return err
}
