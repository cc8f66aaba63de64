// Package worker drives the claim and report protocols on a polling loop
// under a single worker identity.
package worker

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarryhq/quarry/pkg/claim"
	"github.com/quarryhq/quarry/pkg/jobstore"
	"github.com/quarryhq/quarry/pkg/runner"
)

// Config tunes a Worker.
type Config struct {
	// Interval is the pause between poll cycles. Zero defaults to 5s.
	Interval time.Duration

	// RunJobs executes claimed jobs. When false a cycle only claims and
	// pulls, leaving execution to an external driver.
	RunJobs bool

	// ScanRate caps namespace metadata probes per second during a scan.
	ScanRate float64

	// Executor runs claimed jobs when RunJobs is set. Nil uses the mock
	// workload.
	Executor runner.Executor
}

// Snapshot is a point-in-time view of a worker's progress, served by the
// status endpoint.
type Snapshot struct {
	WorkerID    string    `json:"worker_id"`
	Cycles      int64     `json:"cycles"`
	Claims      int64     `json:"claims"`
	Failures    int64     `json:"failures"`
	LastJobID   string    `json:"last_job_id,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	LastCycleAt time.Time `json:"last_cycle_at,omitzero"`
}

// Worker polls a namespace, claiming (and optionally executing) one job per
// cycle.
type Worker struct {
	workerID string
	interval time.Duration
	runJobs  bool
	claimer  *claim.Claimer
	runner   *runner.Runner
	logger   *zap.Logger

	mu   sync.Mutex
	snap Snapshot
}

// New builds a Worker over the given store. Claimed jobs land under
// workRoot/<job_id>.
func New(store jobstore.Store, workRoot, workerID string, cfg Config, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	return &Worker{
		workerID: workerID,
		interval: interval,
		runJobs:  cfg.RunJobs,
		claimer:  claim.New(store, workRoot, workerID, claim.Options{ScanRate: cfg.ScanRate, Logger: logger}),
		runner:   runner.New(store, workRoot, workerID, cfg.Executor, logger),
		logger:   logger,
		snap:     Snapshot{WorkerID: workerID},
	}
}

// RunOnce performs a single poll cycle: claim and pull at most one job, then
// execute and report it when configured to. It returns the claimed job id,
// or "" when no job was claimable.
func (w *Worker) RunOnce(ctx context.Context) (string, error) {
	jobID, err := w.claimer.ClaimAndPullOne(ctx)
	if err == nil && jobID != "" && w.runJobs {
		err = w.runner.RunClaimedJob(ctx, jobID)
	}
	w.record(jobID, err)
	return jobID, err
}

// Run polls until ctx is canceled. A failed cycle is logged and retried on
// the next interval rather than terminating the loop.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started",
		zap.String("worker_id", w.workerID),
		zap.Duration("interval", w.interval),
		zap.Bool("run_jobs", w.runJobs))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		jobID, err := w.RunOnce(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			w.logger.Info("worker stopping", zap.String("worker_id", w.workerID))
			return ctx.Err()
		case err != nil:
			w.logger.Error("poll cycle failed", zap.Error(err))
		case jobID != "":
			w.logger.Info("cycle claimed job", zap.String("job_id", jobID))
		default:
			w.logger.Debug("no claimable jobs found")
		}

		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping", zap.String("worker_id", w.workerID))
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Snapshot returns a copy of the worker's progress counters.
func (w *Worker) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snap
}

func (w *Worker) record(jobID string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.snap.Cycles++
	w.snap.LastCycleAt = time.Now().UTC()
	if jobID != "" {
		w.snap.Claims++
		w.snap.LastJobID = jobID
	}
	if err != nil {
		w.snap.Failures++
		w.snap.LastError = err.Error()
		return
	}
	w.snap.LastError = ""
}

// DefaultWorkerID derives a stable identity from hostname and OS user,
// falling back to a random id when either lookup fails.
func DefaultWorkerID() string {
	host, herr := os.Hostname()
	u, uerr := user.Current()
	if herr != nil || uerr != nil {
		return "worker-" + uuid.New().String()
	}
	return fmt.Sprintf("%s:%s", host, u.Username)
}
