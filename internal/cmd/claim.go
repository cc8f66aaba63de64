package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/quarryhq/quarry/pkg/claim"
	"github.com/quarryhq/quarry/pkg/worker"
)

var claimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Claim and pull at most one job, without running it",
	Long: `Scan the namespace once, claim the first unclaimed job via conditional
create, and pull its folder into the work directory. Prints the claimed job
id, or reports that nothing was claimable.

Example:
  quarry claim --workdir work
  quarry claim --backend file --root-dir ./jobs`,
	RunE: runClaim,
}

var (
	claimWorkDir  string
	claimWorkerID string
)

func init() {
	rootCmd.AddCommand(claimCmd)

	claimCmd.Flags().StringVar(&claimWorkDir, "workdir", "", "Local directory to place the pulled job (default from config)")
	claimCmd.Flags().StringVar(&claimWorkerID, "worker-id", "", "Worker identity (defaults to host:user)")
}

func runClaim(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	if claimWorkDir != "" {
		cfg.Worker.WorkRoot = claimWorkDir
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to build store", err)
	}
	defer func() { _ = store.Close() }()

	workerID := claimWorkerID
	if workerID == "" {
		workerID = cfg.Worker.ID
	}
	if workerID == "" {
		workerID = worker.DefaultWorkerID()
	}

	jobID, err := claim.ClaimAndPullOne(ctx, store, cfg.Worker.WorkRoot, workerID)
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Claim scan failed", err)
	}
	if jobID == "" {
		fmt.Println("no claimable jobs found")
		return nil
	}
	fmt.Printf("claimed and pulled job: %s -> %s\n", jobID, filepath.Join(cfg.Worker.WorkRoot, jobID))
	return nil
}
