package worker

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryhq/quarry/pkg/jobmeta"
	filestore "github.com/quarryhq/quarry/pkg/jobstore/file"
	"github.com/quarryhq/quarry/pkg/runner"
)

func newNamespace(t *testing.T) *filestore.Store {
	t.Helper()
	s, err := filestore.New(filestore.Config{Root: t.TempDir()})
	require.NoError(t, err)
	return s
}

func instantExecutor() runner.Executor {
	return runner.ExecutorFunc(func(ctx context.Context, jobID, jobDir string) (runner.Result, error) {
		return runner.Result{Succeeded: true, Payload: map[string]any{"summary": "ok"}}, nil
	})
}

func TestRunOnce_ClaimsAndRuns(t *testing.T) {
	ctx := context.Background()
	store := newNamespace(t)
	require.NoError(t, store.PutText(ctx, "job-1/input.txt", "x"))

	w := New(store, t.TempDir(), "host:alice", Config{
		RunJobs:  true,
		Executor: instantExecutor(),
	}, nil)

	jobID, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)

	mdText, ok, err := store.GetText(ctx, "job-1/worker-metadata.json")
	require.NoError(t, err)
	require.True(t, ok)
	md, err := jobmeta.Parse(mdText)
	require.NoError(t, err)
	assert.Equal(t, jobmeta.StatusSuccessful, md.Status)

	snap := w.Snapshot()
	assert.Equal(t, int64(1), snap.Cycles)
	assert.Equal(t, int64(1), snap.Claims)
	assert.Equal(t, "job-1", snap.LastJobID)
	assert.Empty(t, snap.LastError)
}

func TestRunOnce_NoRunLeavesInProgress(t *testing.T) {
	ctx := context.Background()
	store := newNamespace(t)
	require.NoError(t, store.PutText(ctx, "job-1/input.txt", "x"))

	w := New(store, t.TempDir(), "host:alice", Config{RunJobs: false}, nil)

	jobID, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)

	mdText, ok, err := store.GetText(ctx, "job-1/worker-metadata.json")
	require.NoError(t, err)
	require.True(t, ok)
	md, err := jobmeta.Parse(mdText)
	require.NoError(t, err)
	assert.Equal(t, jobmeta.StatusInProgress, md.Status)
}

func TestRunOnce_EmptyNamespace(t *testing.T) {
	w := New(newNamespace(t), t.TempDir(), "host:alice", Config{}, nil)

	jobID, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, jobID)

	snap := w.Snapshot()
	assert.Equal(t, int64(1), snap.Cycles)
	assert.Equal(t, int64(0), snap.Claims)
}

func TestRun_StopsOnCancel(t *testing.T) {
	store := newNamespace(t)
	w := New(store, t.TempDir(), "host:alice", Config{Interval: 10 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker loop did not stop on cancel")
	}

	assert.GreaterOrEqual(t, w.Snapshot().Cycles, int64(1))
}

func TestDefaultWorkerID(t *testing.T) {
	id := DefaultWorkerID()
	require.NotEmpty(t, id)
	// host:user or a uuid fallback; either way it names one worker.
	if !strings.Contains(id, ":") {
		assert.True(t, strings.HasPrefix(id, "worker-"))
	}
}
