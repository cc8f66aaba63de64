package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// QUARRY_STORE_BUCKET, QUARRY_WORKER_INTERVAL, QUARRY_LOGGING_LEVEL.
const EnvPrefix = "QUARRY"

// Load builds the process configuration.
//
// Precedence, lowest to highest: built-in defaults, a quarry.yaml in the
// working directory (optional), QUARRY_* environment variables, then any
// runtime override maps supplied by the caller (applied in order).
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	_ = ctx

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("quarry")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	for _, o := range overrides {
		applyOverrides(v, "", o)
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// Validation happens when a command builds a store: the s3 backend's
	// required bucket, for example, is only required once s3 is actually
	// selected for use.
	return &cfg, nil
}

// applyOverrides sets each leaf of a nested override map with viper's
// highest precedence, so runtime overrides beat environment variables.
func applyOverrides(v *viper.Viper, prefix string, m map[string]any) {
	for key, value := range m {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			applyOverrides(v, full, nested)
			continue
		}
		v.Set(full, value)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.backend", "s3")
	v.SetDefault("store.bucket", "")
	v.SetDefault("store.region", "")
	v.SetDefault("store.endpoint", "")
	v.SetDefault("store.profile", "")
	v.SetDefault("store.force_path_style", false)
	v.SetDefault("store.verify_writes", false)
	v.SetDefault("store.root", "jobs")

	v.SetDefault("worker.work_root", "work")
	v.SetDefault("worker.id", "")
	v.SetDefault("worker.interval", "5s")
	v.SetDefault("worker.scan_rate", 0.0)
	v.SetDefault("worker.run_jobs", true)
	v.SetDefault("worker.mock_sleep", "10s")

	v.SetDefault("status.enabled", false)
	v.SetDefault("status.host", "localhost")
	v.SetDefault("status.port", 8080)

	v.SetDefault("logging.level", "info")
}

// bindEnvKeys makes AutomaticEnv see nested keys that have no default of
// their own type. Binding every known key keeps env resolution explicit.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"store.backend", "store.bucket", "store.region", "store.endpoint",
		"store.profile", "store.force_path_style", "store.verify_writes",
		"store.root",
		"worker.work_root", "worker.id", "worker.interval",
		"worker.scan_rate", "worker.run_jobs", "worker.mock_sleep",
		"status.enabled", "status.host", "status.port",
		"logging.level",
	} {
		_ = v.BindEnv(key)
	}
}
