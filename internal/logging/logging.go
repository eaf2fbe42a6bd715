// Package logging configures zerolog for pulsekey.
package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

var (
	mu   sync.Mutex
	root = newRoot(os.Stderr, false)
)

// Setup configures the global log level and output format.
// With jsonOut false and stderr attached to a terminal, output goes
// through a console writer; otherwise raw JSON lines are written.
func Setup(verbose, jsonOut bool) {
	mu.Lock()
	defer mu.Unlock()

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = os.Stderr
	if !jsonOut && term.IsTerminal(int(os.Stderr.Fd())) {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	root = newRoot(out, verbose)
}

// Component returns a logger tagged with a component name.
func Component(name string) zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return root.With().Str("component", name).Logger()
}

func newRoot(out io.Writer, verbose bool) zerolog.Logger {
	logger := zerolog.New(out).With().Timestamp().Logger()
	if verbose {
		logger = logger.With().Caller().Logger()
	}
	return logger
}
