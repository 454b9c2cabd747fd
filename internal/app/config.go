package app

import (
	"fmt"
	"path/filepath"

	"github.com/abca4/fafpipe/internal/config"
)

// Defaults applied when neither a flag nor the config file sets a value.
const (
	defaultWorkers   = 4
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
)

// Config holds everything an App instance needs to run. Zero values for
// the optional fields mean "not set" and are filled from the config
// file or the defaults during NewApp.
type Config struct {
	// InputPath is the FAF image to analyze. Required.
	InputPath string

	// ConfigPath optionally names an HCL file with settings and per-job
	// parameter overrides.
	ConfigPath string

	// StartFrom and StopAfter bound the portion of the graph to run.
	// Empty means unbounded on that side.
	StartFrom string
	StopAfter string

	// SkipExisting enables the artifact-cache check before each job.
	SkipExisting bool

	// Workers caps concurrent job execution.
	Workers int

	// WorkDir receives per-job workfiles. Defaults to a faf-work
	// directory next to the input image.
	WorkDir string

	// Database is the SQLite path for results and run reports. Empty
	// keeps everything in memory for the lifetime of the process.
	Database string

	LogLevel  string
	LogFormat string

	// HealthcheckPort serves /health and /metrics when positive.
	HealthcheckPort int
}

// NewConfig validates a flag-level configuration. Merging with the
// config file happens later, in NewApp, once the file is loaded.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.InputPath == "" {
		return nil, fmt.Errorf("an input image path is required")
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers must not be negative, got %d", cfg.Workers)
	}
	return &cfg, nil
}

// merge layers file settings under the flag values, then fills the
// remaining gaps with defaults. Flags win over the file, the file wins
// over defaults.
func (c *Config) merge(settings config.Settings) {
	if c.WorkDir == "" {
		c.WorkDir = settings.WorkDir
	}
	if c.Database == "" {
		c.Database = settings.Database
	}
	if c.Workers == 0 {
		c.Workers = settings.Workers
	}
	if c.LogLevel == "" {
		c.LogLevel = settings.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = settings.LogFormat
	}

	if c.WorkDir == "" {
		c.WorkDir = filepath.Join(filepath.Dir(c.InputPath), "faf-work")
	}
	if c.Workers == 0 {
		c.Workers = defaultWorkers
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = defaultLogFormat
	}
}
