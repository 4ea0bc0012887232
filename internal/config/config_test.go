package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelderby/raceroom/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, ":3001", cfg.Addr)
	assert.Equal(t, 10, cfg.Rooms.MaxRacers)
	assert.Equal(t, 10, cfg.Rooms.PaletteSize)
	assert.Equal(t, 3, cfg.Race.CountdownStart)
	assert.Equal(t, time.Second, cfg.CountdownInterval())
	assert.Equal(t, 90*time.Millisecond, cfg.BoostCooldown())
	assert.Equal(t, 33*time.Millisecond, cfg.SnapshotMinInterval())
	assert.Empty(t, cfg.Results.Path)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
addr: ":9000"
rooms:
  max_racers: 4
race:
  countdown_interval_ms: 500
  boost_cooldown_ms: 120
results:
  path: /tmp/results.db
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, 4, cfg.Rooms.MaxRacers)
	assert.Equal(t, 500*time.Millisecond, cfg.CountdownInterval())
	assert.Equal(t, 120*time.Millisecond, cfg.BoostCooldown())
	assert.Equal(t, "/tmp/results.db", cfg.Results.Path)
	// untouched keys keep their defaults
	assert.Equal(t, 3, cfg.Race.CountdownStart)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `addr: ":9000"`)
	t.Setenv("RACEROOM_ADDR", ":7777")
	t.Setenv("RACEROOM_MAX_RACERS", "6")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7777", cfg.Addr)
	assert.Equal(t, 6, cfg.Rooms.MaxRacers)
}

func TestLoadErrors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = config.Load(writeConfig(t, "addr: [not scalar"))
	assert.Error(t, err)

	_, err = config.Load(writeConfig(t, "rooms:\n  max_racers: 0"))
	assert.Error(t, err)
}
