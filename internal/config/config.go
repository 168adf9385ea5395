package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable the server reads from the environment.
type Config struct {
	Port             int           `env:"PORT" envDefault:"8080"`
	DataDir          string        `env:"DATA_DIR" envDefault:"./data"`
	ReconnectWindow  time.Duration `env:"RECONNECT_WINDOW" envDefault:"2m"`
	SweepInterval    time.Duration `env:"SWEEP_INTERVAL" envDefault:"10s"`
	SnapshotDebounce time.Duration `env:"SNAPSHOT_DEBOUNCE" envDefault:"2s"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty        bool          `env:"LOG_PRETTY" envDefault:"false"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.ReconnectWindow <= 0 {
		return Config{}, fmt.Errorf("RECONNECT_WINDOW must be positive")
	}
	if cfg.SweepInterval <= 0 {
		return Config{}, fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	return cfg, nil
}
