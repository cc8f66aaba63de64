// Package runner finalizes claimed jobs: it drives the opaque execution
// step, then reports the result and terminal status to both the namespace
// and the local mirror.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/quarryhq/quarry/pkg/jobmeta"
	"github.com/quarryhq/quarry/pkg/jobstore"
)

// Runner executes claimed jobs and writes their outcome records.
type Runner struct {
	store    jobstore.Store
	workRoot string
	workerID string
	executor Executor
	logger   *zap.Logger
}

// New builds a Runner. A nil executor defaults to the mock workload; a nil
// logger is replaced with a no-op.
func New(store jobstore.Store, workRoot, workerID string, executor Executor, logger *zap.Logger) *Runner {
	if executor == nil {
		executor = &MockExecutor{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		store:    store,
		workRoot: workRoot,
		workerID: workerID,
		executor: executor,
		logger:   logger,
	}
}

// RunClaimedJob executes a job this worker has already claimed and
// materialized, then writes results.json and the terminal claim record to
// the namespace and the local mirror.
//
// The terminal write preserves the claimed_at and worker_id of the existing
// in-progress record; a missing or unparsable record is replaced with a
// minimal one under this worker's identity. A canceled execution writes
// nothing: the job stays in-progress for a future lease-expiry layer.
//
// Re-invoking after a terminal status has been written would overwrite the
// terminal record; callers guard with a status check when replay is a
// concern.
func (r *Runner) RunClaimedJob(ctx context.Context, jobID string) error {
	jobDir := filepath.Join(r.workRoot, jobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return fmt.Errorf("create job dir: %w", err)
	}

	result, err := r.executor.Execute(ctx, jobID, jobDir)
	if err != nil {
		return fmt.Errorf("execute job %s: %w", jobID, err)
	}

	r.logger.Info("execution finished",
		zap.String("job_id", jobID),
		zap.Bool("succeeded", result.Succeeded))

	if err := r.reportResult(ctx, jobID, jobDir, result); err != nil {
		return err
	}
	return r.finalizeMetadata(ctx, jobID, jobDir, result.Status())
}

// reportResult writes results.json to the namespace and the local mirror.
func (r *Runner) reportResult(ctx context.Context, jobID, jobDir string, result Result) error {
	text, err := result.Encode()
	if err != nil {
		return err
	}

	if err := r.store.PutText(ctx, jobstore.ResultsKey(jobID), text); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(jobDir, jobstore.ResultsName), []byte(text), 0o644); err != nil {
		return fmt.Errorf("mirror results for %s: %w", jobID, err)
	}
	return nil
}

// finalizeMetadata transitions the claim record to its terminal status.
func (r *Runner) finalizeMetadata(ctx context.Context, jobID, jobDir string, status jobmeta.Status) error {
	key := jobstore.WorkerMetadataKey(jobID)

	md := jobmeta.NewInProgress(r.workerID)
	existing, ok, err := r.store.GetText(ctx, key)
	if err != nil {
		return err
	}
	if ok {
		parsed, perr := jobmeta.Parse(existing)
		if perr == nil {
			md = parsed
		} else {
			r.logger.Warn("claim record unparsable at finalize, rewriting minimal record",
				zap.String("job_id", jobID),
				zap.Error(perr))
		}
	}

	md = md.WithStatus(status)
	text, err := md.Encode()
	if err != nil {
		return err
	}

	if err := r.store.PutText(ctx, key, text); err != nil {
		return err
	}
	if err := jobmeta.WriteLocal(filepath.Join(jobDir, jobstore.WorkerMetadataName), md); err != nil {
		return err
	}

	r.logger.Info("job finalized",
		zap.String("job_id", jobID),
		zap.String("status", string(status)))
	return nil
}

// RunClaimedJob is the convenience form using the mock executor.
func RunClaimedJob(ctx context.Context, store jobstore.Store, workRoot, jobID, workerID string) error {
	return New(store, workRoot, workerID, nil, nil).RunClaimedJob(ctx, jobID)
}
