package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/quarryhq/quarry/pkg/submit"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download a job folder by id without claiming it",
	Long: `Download every object under a job's prefix into a local directory. No
claim record is written; this is a read-only pull for inspection or for
retrieving results.

Example:
  quarry fetch --id 2f9c1a7e... --dest pulled_jobs`,
	RunE: runFetch,
}

var (
	fetchJobID string
	fetchDest  string
)

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVar(&fetchJobID, "id", "", "Job id (the prefix name in the namespace)")
	fetchCmd.Flags().StringVar(&fetchDest, "dest", "pulled_jobs", "Destination directory root")

	_ = fetchCmd.MarkFlagRequired("id")
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to build store", err)
	}
	defer func() { _ = store.Close() }()

	dest := filepath.Join(fetchDest, fetchJobID)
	if err := submit.Fetch(ctx, store, fetchJobID, dest); err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Fetch failed", err)
	}

	fmt.Printf("job %s downloaded to %s\n", fetchJobID, dest)
	return nil
}
