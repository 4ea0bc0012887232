package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all server settings. Values come from an optional YAML file
// with environment variable overrides applied on top. Intervals are plain
// millisecond integers in YAML; use the accessor methods for durations.
type Config struct {
	Addr     string `yaml:"addr"`
	LogLevel string `yaml:"log_level"`

	Rooms struct {
		MaxRacers   int `yaml:"max_racers"`
		PaletteSize int `yaml:"palette_size"`
	} `yaml:"rooms"`

	Race struct {
		CountdownStart        int `yaml:"countdown_start"`
		CountdownIntervalMS   int `yaml:"countdown_interval_ms"`
		BoostCooldownMS       int `yaml:"boost_cooldown_ms"`
		SnapshotMinIntervalMS int `yaml:"snapshot_min_interval_ms"`
	} `yaml:"race"`

	Results struct {
		Path string `yaml:"path"` // empty disables the results store
	} `yaml:"results"`
}

// Default returns the configuration matching the reference deployment.
func Default() Config {
	var cfg Config
	cfg.Addr = ":3001"
	cfg.LogLevel = "info"
	cfg.Rooms.MaxRacers = 10
	cfg.Rooms.PaletteSize = 10
	cfg.Race.CountdownStart = 3
	cfg.Race.CountdownIntervalMS = 1000
	cfg.Race.BoostCooldownMS = 90
	cfg.Race.SnapshotMinIntervalMS = 33
	return cfg
}

// Load reads the YAML file at path (if non-empty) onto the defaults, then
// applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.Addr = getEnv("RACEROOM_ADDR", cfg.Addr)
	cfg.LogLevel = getEnv("RACEROOM_LOG_LEVEL", cfg.LogLevel)
	cfg.Rooms.MaxRacers = getEnvAsInt("RACEROOM_MAX_RACERS", cfg.Rooms.MaxRacers)
	cfg.Results.Path = getEnv("RACEROOM_RESULTS_PATH", cfg.Results.Path)

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// CountdownInterval is the gap between countdown values.
func (c Config) CountdownInterval() time.Duration {
	return time.Duration(c.Race.CountdownIntervalMS) * time.Millisecond
}

// BoostCooldown is the per-racer window between accepted boost requests.
func (c Config) BoostCooldown() time.Duration {
	return time.Duration(c.Race.BoostCooldownMS) * time.Millisecond
}

// SnapshotMinInterval caps host snapshot fan-out per room.
func (c Config) SnapshotMinInterval() time.Duration {
	return time.Duration(c.Race.SnapshotMinIntervalMS) * time.Millisecond
}

func (c Config) validate() error {
	if c.Rooms.MaxRacers < 1 {
		return fmt.Errorf("rooms.max_racers must be at least 1, got %d", c.Rooms.MaxRacers)
	}
	if c.Rooms.PaletteSize < 1 {
		return fmt.Errorf("rooms.palette_size must be at least 1, got %d", c.Rooms.PaletteSize)
	}
	if c.Race.CountdownStart < 1 {
		return fmt.Errorf("race.countdown_start must be at least 1, got %d", c.Race.CountdownStart)
	}
	if c.Race.CountdownIntervalMS <= 0 {
		return fmt.Errorf("race.countdown_interval_ms must be positive, got %d", c.Race.CountdownIntervalMS)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
