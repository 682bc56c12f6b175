package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 1920, cfg.Display.Width)
	assert.Equal(t, []string{"quickdraw"}, cfg.Games.Enabled)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
display:
  width: 1280
  height: 720
session:
  broadcast_interval_ms: 100
games:
  enabled: [quickdraw, cluedo]
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 1280, cfg.Display.Width)
	assert.Equal(t, 100, cfg.Session.BroadcastIntervalMs)
	assert.Equal(t, []string{"quickdraw", "cluedo"}, cfg.Games.Enabled)
	// untouched sections keep their defaults
	assert.Equal(t, 40, cfg.Video.IntervalMs)
	assert.Equal(t, 200, cfg.Session.HistoryCapacity)
}

func TestLoad_MalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: ["), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9000\"\n"), 0o644))
	t.Setenv("ADDR", ":7777")
	t.Setenv("NATS_URL", "nats://example:4222")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.Server.Addr)
	assert.Equal(t, "nats://example:4222", cfg.Frames.NatsURL)
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "150ms", cfg.Session.BroadcastInterval().String())
	assert.Equal(t, "10s", cfg.Session.CursorTTL().String())
	assert.Equal(t, "40ms", cfg.Video.Interval().String())
}
