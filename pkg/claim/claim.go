// Package claim implements the lease protocol that turns shared-namespace
// reads and writes into a one-worker-per-job guarantee.
package claim

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/quarryhq/quarry/pkg/jobmeta"
	"github.com/quarryhq/quarry/pkg/jobstore"
)

// Options tunes a Claimer.
type Options struct {
	// ScanRate caps metadata probes per second during a scan. Zero or
	// negative disables limiting.
	ScanRate float64

	// ScanBurst is the limiter burst size. Zero defaults to 1.
	ScanBurst int

	// Logger receives per-scan diagnostics. Nil uses a no-op logger.
	Logger *zap.Logger
}

// Claimer scans a namespace for unclaimed jobs and acquires leases.
type Claimer struct {
	store    jobstore.Store
	workRoot string
	workerID string
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// New builds a Claimer for the given store and worker identity. Claimed jobs
// are materialized under workRoot/<job_id>.
func New(store jobstore.Store, workRoot, workerID string, opts Options) *Claimer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if opts.ScanRate > 0 {
		burst := opts.ScanBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.ScanRate), burst)
	}

	return &Claimer{
		store:    store,
		workRoot: workRoot,
		workerID: workerID,
		limiter:  limiter,
		logger:   logger,
	}
}

// ClaimAndPullOne scans the namespace in listing order, leases the first job
// whose claim record is absent, and materializes its contents under
// workRoot/<job_id>. It returns the claimed job id, or "" when the scan
// completes without a claim (a normal outcome, not an error).
//
// A job whose claim record exists is never claimable, even when the record
// is unparsable: only absence proves no one has begun the job. Losing the
// conditional create to another worker advances the scan; a StoreError
// aborts it.
func (c *Claimer) ClaimAndPullOne(ctx context.Context) (string, error) {
	if err := os.MkdirAll(c.workRoot, 0o755); err != nil {
		return "", fmt.Errorf("create work root: %w", err)
	}

	jobIDs, err := c.store.ListJobIDs(ctx)
	if err != nil {
		return "", err
	}

	for _, jobID := range jobIDs {
		if err := c.wait(ctx); err != nil {
			return "", err
		}

		claimable, err := c.isClaimable(ctx, jobID)
		if err != nil {
			return "", err
		}
		if !claimable {
			continue
		}

		md := jobmeta.NewInProgress(c.workerID)
		record, err := md.Encode()
		if err != nil {
			return "", err
		}

		created, err := c.store.PutTextIfAbsent(ctx, jobstore.WorkerMetadataKey(jobID), record)
		if err != nil {
			return "", err
		}
		if !created {
			// Lost the race; move on, never retry the same id in this scan.
			c.logger.Debug("claim lost", zap.String("job_id", jobID))
			continue
		}

		c.logger.Info("claim won",
			zap.String("job_id", jobID),
			zap.String("worker_id", c.workerID))

		if err := c.pull(ctx, jobID, md); err != nil {
			// The lease is held but the mirror is incomplete. The job stays
			// in-progress for external recovery; surface the failure.
			return "", fmt.Errorf("pull claimed job %s: %w", jobID, err)
		}
		return jobID, nil
	}

	return "", nil
}

// isClaimable applies the existence-is-ownership rule.
func (c *Claimer) isClaimable(ctx context.Context, jobID string) (bool, error) {
	exists, err := c.store.Exists(ctx, jobstore.WorkerMetadataKey(jobID))
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// pull materializes the job locally and mirrors the claim record so local
// state matches the namespace even under eventually consistent reads.
func (c *Claimer) pull(ctx context.Context, jobID string, md jobmeta.WorkerMetadata) error {
	dest := filepath.Join(c.workRoot, jobID)
	if err := c.store.DownloadPrefix(ctx, jobID, dest); err != nil {
		return err
	}
	return jobmeta.WriteLocal(filepath.Join(dest, jobstore.WorkerMetadataName), md)
}

// ClaimAndPullOne is the convenience form with default options.
func ClaimAndPullOne(ctx context.Context, store jobstore.Store, workRoot, workerID string) (string, error) {
	return New(store, workRoot, workerID, Options{}).ClaimAndPullOne(ctx)
}

func (c *Claimer) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}
