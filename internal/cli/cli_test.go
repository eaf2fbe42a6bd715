package cli

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsekey/pulsekey/internal/config"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestInitWritesLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	require.NoError(t, execute(t, "init", "--config", path))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.NotEmpty(t, cfg.ProcessName)
	assert.NotEmpty(t, cfg.KeySequence)
}

func TestInitRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	require.NoError(t, execute(t, "init", "--config", path))

	err := execute(t, "init", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	require.NoError(t, execute(t, "init", "--config", path, "--force"))
}

func TestValidateAcceptsGoodConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := config.Default()
	cfg.ProcessName = "game.exe"
	cfg.KeySequence = []config.KeyAction{
		{Key: "ctrl+r", IntervalAfter: config.Duration{Duration: time.Second}},
	}
	require.NoError(t, cfg.Save(path))

	assert.NoError(t, execute(t, "validate", "--config", path))
}

func TestValidateRejectsBadKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := config.Default()
	cfg.ProcessName = "game.exe"
	cfg.KeySequence = []config.KeyAction{{Key: "notakey"}}
	require.NoError(t, cfg.Save(path))

	err := execute(t, "validate", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestParseSince(t *testing.T) {
	at, err := parseSince("2026-08-23T10:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 2026, at.Year())

	ago, err := parseSince("30m")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(-30*time.Minute), ago, 5*time.Second)

	_, err = parseSince("yesterday")
	assert.Error(t, err)
}
