package cmd

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quarryhq/quarry/internal/observability"
	"github.com/quarryhq/quarry/pkg/submit"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Bundle kernel+data inputs and upload them as a new job",
	Long: `Copy a kernel file/folder and a data file/folder into a staged job
layout, then upload every file under a fresh job id prefix. Workers never
see a partially described job: the claim record is only ever written by the
worker that later claims it.

Inputs come from flags or from a YAML manifest:

  quarry submit --kernel model.py --data inputs/
  quarry submit --job job.yaml
  quarry submit --kernel k/ --data d/ --exclude "data/**/*.tmp"`,
	RunE: runSubmit,
}

var (
	submitJobPath string
	submitKernel  string
	submitData    string
	submitInclude []string
	submitExclude []string
)

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringVarP(&submitJobPath, "job", "j", "", "Path to submission manifest (YAML)")
	submitCmd.Flags().StringVar(&submitKernel, "kernel", "", "Path to kernel file or folder")
	submitCmd.Flags().StringVar(&submitData, "data", "", "Path to data file or folder")
	submitCmd.Flags().StringSliceVar(&submitInclude, "include", nil, "Glob restricting staged paths to upload")
	submitCmd.Flags().StringSliceVar(&submitExclude, "exclude", nil, "Glob dropping staged paths from upload")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	m, err := submitManifest()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid submission", err)
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to build store", err)
	}
	defer func() { _ = store.Close() }()

	jobID, err := submit.Submit(ctx, store, m)
	if err != nil {
		observability.CLILogger.Error("Submission failed", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Submission failed", err)
	}

	fmt.Printf("job uploaded: %s\n", jobID)
	return nil
}

// submitManifest resolves the manifest from --job or from direct flags.
// Flags override manifest fields when both are given.
func submitManifest() (*submit.Manifest, error) {
	var m *submit.Manifest
	if submitJobPath != "" {
		loaded, err := submit.LoadManifest(submitJobPath)
		if err != nil {
			return nil, err
		}
		m = loaded
	} else {
		m = &submit.Manifest{}
	}

	if submitKernel != "" {
		m.Kernel = submitKernel
	}
	if submitData != "" {
		m.Data = submitData
	}
	if len(submitInclude) > 0 {
		m.Include = submitInclude
	}
	if len(submitExclude) > 0 {
		m.Exclude = submitExclude
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
