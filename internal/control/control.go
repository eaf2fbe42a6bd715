// Package control exposes a JSON-RPC 2.0 control surface for a running
// pulsekey instance over a unix domain socket.
package control

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/server"

	"github.com/pulsekey/pulsekey/internal/engine"
	"github.com/pulsekey/pulsekey/internal/logging"
	"github.com/pulsekey/pulsekey/internal/pause"
)

// Custom JSON-RPC error codes.
const (
	codeNoActiveRun = jrpc2.Code(-32001)
)

// VersionResult is the response for system.getVersion.
type VersionResult struct {
	Version string `json:"version"`
}

// PauseResult is the response for run.pause / run.resume.
type PauseResult struct {
	Paused bool `json:"paused"`
}

// StatusResult is the response for run.status.
type StatusResult struct {
	Running     bool   `json:"running"`
	Paused      bool   `json:"paused"`
	ProcessName string `json:"processName"`
	PID         int32  `json:"pid,omitempty"`
	Uptime      string `json:"uptime,omitempty"`
}

// StatsResult is the response for run.stats.
type StatsResult struct {
	TotalInjections  int64  `json:"totalInjections"`
	FailedInjections int64  `json:"failedInjections"`
	Reacquisitions   int64  `json:"reacquisitions"`
	SequencePasses   int64  `json:"sequencePasses"`
	LastInjectionAt  string `json:"lastInjectionAt,omitempty"`
}

// Server serves control methods for one run.
type Server struct {
	engine      *engine.Engine
	pauseState  *pause.State
	processName string
	version     string
}

// NewServer creates a control server bound to a run's engine and pause
// state.
func NewServer(eng *engine.Engine, pauseState *pause.State, processName, version string) *Server {
	return &Server{
		engine:      eng,
		pauseState:  pauseState,
		processName: processName,
		version:     version,
	}
}

// Methods returns the JSON-RPC method map.
func (s *Server) Methods() handler.Map {
	return handler.Map{
		"system.getVersion": handler.New(s.systemGetVersion),
		"run.pause":         handler.New(s.runPause),
		"run.resume":        handler.New(s.runResume),
		"run.status":        handler.New(s.runStatus),
		"run.stats":         handler.New(s.runStats),
	}
}

// Serve accepts connections on the unix socket until ctx is canceled. The
// socket file is removed on shutdown.
func (s *Server) Serve(ctx context.Context, socketPath string) error {
	logger := logging.Component("control")

	// A previous run may have left a dead socket behind.
	_ = os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", socketPath, err)
	}
	defer os.Remove(socketPath)

	logger.Info().Str("socket", socketPath).Msg("control socket listening")

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	acc := server.NetAccepter(listener, channel.Line)
	err = server.Loop(ctx, acc, server.Static(s.Methods()), nil)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Server) systemGetVersion(ctx context.Context) (*VersionResult, error) {
	return &VersionResult{Version: s.version}, nil
}

func (s *Server) runPause(ctx context.Context) (*PauseResult, error) {
	s.pauseState.Set(true)
	return &PauseResult{Paused: true}, nil
}

func (s *Server) runResume(ctx context.Context) (*PauseResult, error) {
	s.pauseState.Set(false)
	return &PauseResult{Paused: false}, nil
}

func (s *Server) runStatus(ctx context.Context) (*StatusResult, error) {
	result := &StatusResult{
		Running:     s.engine.Running(),
		Paused:      s.pauseState.Paused(),
		ProcessName: s.processName,
	}
	if target := s.engine.Target(); target.PID != 0 {
		result.PID = target.PID
	}
	if stats := s.engine.Stats(); stats.StartedAt != nil {
		result.Uptime = time.Since(*stats.StartedAt).Round(time.Second).String()
	}
	return result, nil
}

func (s *Server) runStats(ctx context.Context) (*StatsResult, error) {
	stats := s.engine.Stats()
	if stats.StartedAt == nil {
		return nil, codeNoActiveRun.Err()
	}

	result := &StatsResult{
		TotalInjections:  stats.TotalInjections,
		FailedInjections: stats.FailedInjections,
		Reacquisitions:   stats.Reacquisitions,
		SequencePasses:   stats.SequencePasses,
	}
	if stats.LastInjectionAt != nil {
		result.LastInjectionAt = stats.LastInjectionAt.UTC().Format(time.RFC3339)
	}
	return result, nil
}

// DefaultSocketPath returns the control socket location, preferring
// XDG_RUNTIME_DIR.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "pulsekey.sock")
	}
	return filepath.Join(os.TempDir(), "pulsekey.sock")
}
