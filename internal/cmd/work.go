package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quarryhq/quarry/internal/config"
	"github.com/quarryhq/quarry/internal/observability"
	"github.com/quarryhq/quarry/internal/server"
	"github.com/quarryhq/quarry/pkg/runner"
	"github.com/quarryhq/quarry/pkg/worker"
)

var workCmd = &cobra.Command{
	Use:   "work",
	Short: "Poll the namespace for jobs, claim, pull, and run them",
	Long: `Poll the shared namespace for unclaimed jobs. Each cycle claims at most
one job via a conditional create of its worker-metadata.json, pulls the job
folder into the work directory, and (unless --no-run) executes it and reports
results.json plus the terminal status.

Example:
  quarry work --interval 5s --workdir work
  quarry work --once
  quarry work --backend file --root-dir ./jobs --no-run`,
	RunE: runWork,
}

var (
	workDir      string
	workOnce     bool
	workNoRun    bool
	workInterval time.Duration
	workWorkerID string
	workStatus   bool
)

func init() {
	rootCmd.AddCommand(workCmd)

	workCmd.Flags().StringVar(&workDir, "workdir", "", "Local directory to place pulled jobs (default from config)")
	workCmd.Flags().BoolVar(&workOnce, "once", false, "Claim (and run) at most one job, then exit")
	workCmd.Flags().BoolVar(&workNoRun, "no-run", false, "Claim and pull only; skip execution")
	workCmd.Flags().DurationVar(&workInterval, "interval", 0, "Poll interval when looping (default from config)")
	workCmd.Flags().StringVar(&workWorkerID, "worker-id", "", "Worker identity (defaults to host:user)")
	workCmd.Flags().BoolVar(&workStatus, "status", false, "Serve the HTTP status endpoint")
}

func runWork(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	applyWorkFlags(cfg)

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to build store", err)
	}
	defer func() { _ = store.Close() }()

	logger, err := observability.NewLogger(cfg.Logging.Level)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid log level", err)
	}
	defer func() { _ = logger.Sync() }()

	workerID := cfg.Worker.ID
	if workerID == "" {
		workerID = worker.DefaultWorkerID()
	}

	w := worker.New(store, cfg.Worker.WorkRoot, workerID, worker.Config{
		Interval: cfg.Worker.Interval,
		RunJobs:  cfg.Worker.RunJobs,
		ScanRate: cfg.Worker.ScanRate,
		Executor: &runner.MockExecutor{Sleep: cfg.Worker.MockSleep},
	}, logger)

	if cfg.Status.Enabled {
		srv := server.New(cfg.Status.Host, cfg.Status.Port, versionInfo.Version, w)
		go func() {
			if err := srv.Start(); err != nil {
				observability.CLILogger.Error("Status server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if workOnce {
		jobID, err := w.RunOnce(ctx)
		if err != nil {
			return exitError(foundry.ExitExternalServiceUnavailable, "Poll cycle failed", err)
		}
		if jobID == "" {
			fmt.Println("no claimable jobs found")
			return nil
		}
		fmt.Printf("claimed and pulled job: %s\n", jobID)
		return nil
	}

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return exitError(foundry.ExitExternalServiceUnavailable, "Worker loop failed", err)
	}
	return nil
}

// applyWorkFlags overlays command flags onto the loaded config.
func applyWorkFlags(cfg *config.Config) {
	if workDir != "" {
		cfg.Worker.WorkRoot = workDir
	}
	if workInterval > 0 {
		cfg.Worker.Interval = workInterval
	}
	if workWorkerID != "" {
		cfg.Worker.ID = workWorkerID
	}
	if workNoRun {
		cfg.Worker.RunJobs = false
	}
	if workStatus {
		cfg.Status.Enabled = true
	}
}
