// Package hotkey toggles the pause state from a global hotkey.
package hotkey

import (
	"context"
	"fmt"

	hook "github.com/robotn/gohook"

	"github.com/pulsekey/pulsekey/internal/keymap"
	"github.com/pulsekey/pulsekey/internal/logging"
	"github.com/pulsekey/pulsekey/internal/pause"
)

// Listener registers a global hotkey and flips the shared pause state each
// time it fires. It is the sole writer of the pause state during a run.
type Listener struct {
	combo []string
	state *pause.State
}

// NewListener resolves the hotkey token (e.g. "ctrl+alt+r") and prepares a
// listener bound to state.
func NewListener(hotkeyToken string, state *pause.State) (*Listener, error) {
	chord, err := keymap.Resolve(hotkeyToken)
	if err != nil {
		return nil, fmt.Errorf("hotkey error: %w", err)
	}

	// gohook wants the key first, then modifiers.
	combo := append([]string{chord.Key}, chord.Mods.Names()...)
	return &Listener{combo: combo, state: state}, nil
}

// Run blocks delivering hotkey events until ctx is canceled. Events arrive
// on a channel from the OS hook, so there is no fixed-latency polling.
func (l *Listener) Run(ctx context.Context) error {
	logger := logging.Component("hotkey")

	hook.Register(hook.KeyDown, l.combo, func(e hook.Event) {
		if l.state.Toggle() {
			logger.Info().Msg("automation paused (press hotkey again to resume)")
		} else {
			logger.Info().Msg("automation resumed")
		}
	})

	events := hook.Start()
	defer hook.End()
	done := hook.Process(events)

	logger.Info().Strs("combo", l.combo).Msg("global pause hotkey registered")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
