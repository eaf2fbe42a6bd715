package control

import (
	"context"
	"io"
	"testing"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsekey/pulsekey/internal/config"
	"github.com/pulsekey/pulsekey/internal/engine"
	"github.com/pulsekey/pulsekey/internal/pause"
)

// newTestClient wires a control server to an in-memory jrpc2 client over
// io.Pipe channels.
func newTestClient(t *testing.T, s *Server) *jrpc2.Client {
	t.Helper()
	cr, sw := io.Pipe()
	sr, cw := io.Pipe()
	cliCh := channel.Line(cr, cw)
	srvCh := channel.Line(sr, sw)

	srv := jrpc2.NewServer(s.Methods(), nil)
	srv.Start(srvCh)
	cli := jrpc2.NewClient(cliCh, nil)

	t.Cleanup(func() {
		cli.Close()
		_ = srv.Wait()
	})
	return cli
}

func newIdleServer(t *testing.T) (*Server, *pause.State) {
	t.Helper()
	cfg := config.Default()
	cfg.ProcessName = "target.exe"
	cfg.KeySequence = []config.KeyAction{{Key: "space"}}

	st := pause.NewState()
	eng := engine.New(&cfg, nil, nil, st, nil, engine.Options{})
	return NewServer(eng, st, cfg.ProcessName, "1.2.3"), st
}

func TestControlGetVersion(t *testing.T) {
	s, _ := newIdleServer(t)
	cli := newTestClient(t, s)

	var result VersionResult
	err := cli.CallResult(context.Background(), "system.getVersion", nil, &result)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", result.Version)
}

func TestControlPauseResume(t *testing.T) {
	s, st := newIdleServer(t)
	cli := newTestClient(t, s)
	ctx := context.Background()

	var result PauseResult
	require.NoError(t, cli.CallResult(ctx, "run.pause", nil, &result))
	assert.True(t, result.Paused)
	assert.True(t, st.Paused())

	require.NoError(t, cli.CallResult(ctx, "run.resume", nil, &result))
	assert.False(t, result.Paused)
	assert.False(t, st.Paused())
}

func TestControlStatusIdle(t *testing.T) {
	s, st := newIdleServer(t)
	cli := newTestClient(t, s)

	st.Set(true)

	var result StatusResult
	err := cli.CallResult(context.Background(), "run.status", nil, &result)
	require.NoError(t, err)
	assert.False(t, result.Running)
	assert.True(t, result.Paused)
	assert.Equal(t, "target.exe", result.ProcessName)
	assert.Zero(t, result.PID)
}

func TestControlStatsRequiresActiveRun(t *testing.T) {
	s, _ := newIdleServer(t)
	cli := newTestClient(t, s)

	var result StatsResult
	err := cli.CallResult(context.Background(), "run.stats", nil, &result)
	require.Error(t, err)
	assert.Equal(t, codeNoActiveRun, jrpc2.ErrorCode(err))
}

func TestDefaultSocketPath(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	assert.Equal(t, "/run/user/1000/pulsekey.sock", DefaultSocketPath())

	t.Setenv("XDG_RUNTIME_DIR", "")
	assert.Contains(t, DefaultSocketPath(), "pulsekey.sock")
}
