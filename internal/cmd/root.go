// Package cmd wires the quarry CLI: a polling worker over a shared job
// namespace, plus one-shot claim, submit, and fetch commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quarryhq/quarry/internal/config"
	"github.com/quarryhq/quarry/internal/observability"
)

// versionInfo holds build metadata injected by the linker via SetVersionInfo.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata for the version command.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var rootCmd = &cobra.Command{
	Use:   "quarry",
	Short: "Workers competing for jobs in a shared object-store namespace",
	Long: `quarry coordinates a pool of independent workers competing for jobs stored
as folders in a shared namespace (S3 or a local directory), with no
coordination service: claiming is an atomic conditional create of the job's
worker-metadata.json.

Examples:
  quarry work --interval 5s
  quarry work --once --backend file --root-dir ./jobs
  quarry claim --workdir ./work
  quarry submit --kernel model.py --data inputs/
  quarry fetch --id 2f9c... --dest pulled_jobs`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return observability.Init(rootLogLevel)
	},
}

var (
	rootLogLevel string

	// Backend overrides applied on top of the loaded config.
	flagBackend  string
	flagBucket   string
	flagEndpoint string
	flagRegion   string
	flagRootDir  string
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootLogLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	pf.StringVar(&flagBackend, "backend", "", "Namespace backend (s3|file)")
	pf.StringVar(&flagBucket, "bucket", "", "S3 bucket name")
	pf.StringVar(&flagEndpoint, "endpoint-url", "", "Custom S3 endpoint URL")
	pf.StringVar(&flagRegion, "region", "", "AWS region")
	pf.StringVar(&flagRootDir, "root-dir", "", "Local jobs root (file backend)")
}

// loadConfig loads process configuration with root-flag overrides applied.
func loadConfig(ctx context.Context) (*config.Config, error) {
	overrides := map[string]any{}
	storeOverrides := map[string]any{}
	if flagBackend != "" {
		storeOverrides["backend"] = flagBackend
	}
	if flagBucket != "" {
		storeOverrides["bucket"] = flagBucket
	}
	if flagEndpoint != "" {
		storeOverrides["endpoint"] = flagEndpoint
	}
	if flagRegion != "" {
		storeOverrides["region"] = flagRegion
	}
	if flagRootDir != "" {
		storeOverrides["root"] = flagRootDir
	}
	if len(storeOverrides) > 0 {
		overrides["store"] = storeOverrides
	}
	if rootLogLevel != "" {
		overrides["logging"] = map[string]any{"level": rootLogLevel}
	}

	return config.Load(ctx, overrides)
}

// Execute runs the CLI with signal-aware cancellation.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return fmt.Errorf("%s: %w (exit code %d)", message, err, code)
}
