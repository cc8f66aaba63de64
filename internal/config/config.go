// Package config loads quarry configuration: defaults, an optional
// quarry.yaml, QUARRY_* environment overrides, and runtime override maps,
// in increasing precedence.
package config

import (
	"fmt"
	"time"
)

// Config is the full process configuration.
type Config struct {
	Store   StoreConfig   `mapstructure:"store"`
	Worker  WorkerConfig  `mapstructure:"worker"`
	Status  StatusConfig  `mapstructure:"status"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// StoreConfig selects and configures the namespace backend.
type StoreConfig struct {
	// Backend is "s3" or "file".
	Backend string `mapstructure:"backend"`

	// Bucket is the S3 bucket name (s3 backend).
	Bucket string `mapstructure:"bucket"`

	// Region is the AWS region (s3 backend).
	Region string `mapstructure:"region"`

	// Endpoint is a custom endpoint URL for S3-compatible stores.
	Endpoint string `mapstructure:"endpoint"`

	// Profile is the AWS shared-config profile.
	Profile string `mapstructure:"profile"`

	// ForcePathStyle forces path-style URLs (most S3-compatible stores).
	ForcePathStyle bool `mapstructure:"force_path_style"`

	// VerifyWrites selects write-then-verify conditional creates for
	// endpoints without If-None-Match support.
	VerifyWrites bool `mapstructure:"verify_writes"`

	// Root is the jobs directory (file backend).
	Root string `mapstructure:"root"`
}

// WorkerConfig tunes the polling worker.
type WorkerConfig struct {
	// WorkRoot is the local directory claimed jobs are pulled into.
	WorkRoot string `mapstructure:"work_root"`

	// ID is the worker identity. Empty derives host:user.
	ID string `mapstructure:"id"`

	// Interval is the pause between poll cycles.
	Interval time.Duration `mapstructure:"interval"`

	// ScanRate caps namespace metadata probes per second. Zero disables.
	ScanRate float64 `mapstructure:"scan_rate"`

	// RunJobs executes claimed jobs; false restricts cycles to
	// claim-and-pull.
	RunJobs bool `mapstructure:"run_jobs"`

	// MockSleep is the simulated execution time of the mock executor.
	MockSleep time.Duration `mapstructure:"mock_sleep"`
}

// StatusConfig configures the worker's HTTP status server.
type StatusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "s3":
		if c.Store.Bucket == "" {
			return fmt.Errorf("config: store.bucket is required for the s3 backend (set --bucket or QUARRY_STORE_BUCKET)")
		}
	case "file":
		if c.Store.Root == "" {
			return fmt.Errorf("config: store.root is required for the file backend (set --root-dir or QUARRY_STORE_ROOT)")
		}
	default:
		return fmt.Errorf("config: unknown store.backend %q (want s3 or file)", c.Store.Backend)
	}

	if c.Worker.Interval <= 0 {
		return fmt.Errorf("config: worker.interval must be positive")
	}
	if c.Status.Enabled && (c.Status.Port < 0 || c.Status.Port > 65535) {
		return fmt.Errorf("config: status.port out of range: %d", c.Status.Port)
	}
	return nil
}
