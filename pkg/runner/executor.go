package runner

import (
	"context"
	"math/rand/v2"
	"time"
)

// Executor runs a locally materialized job. Implementations receive the job
// id and the directory holding its pulled inputs, and must honor ctx
// cancellation: a canceled execution returns ctx.Err() and produces no
// result.
type Executor interface {
	Execute(ctx context.Context, jobID, jobDir string) (Result, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, jobID, jobDir string) (Result, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, jobID, jobDir string) (Result, error) {
	return f(ctx, jobID, jobDir)
}

// MockExecutor is a stand-in workload: it sleeps for a fixed interval, then
// reports success or failure at a fixed split. Replace with a real executor
// without touching the claim or report protocols.
type MockExecutor struct {
	// Sleep is the simulated execution time. Zero defaults to 10s.
	Sleep time.Duration

	// SuccessRate is the probability of a successful outcome in [0, 1].
	// Zero defaults to 0.7; a negative value forces failure on every run.
	SuccessRate float64

	// Rand supplies randomness. Nil uses the shared global source.
	Rand *rand.Rand
}

// Execute implements Executor.
func (m *MockExecutor) Execute(ctx context.Context, jobID, jobDir string) (Result, error) {
	_ = jobDir

	sleep := m.Sleep
	if sleep == 0 {
		sleep = 10 * time.Second
	}
	successRate := m.SuccessRate
	switch {
	case successRate == 0:
		successRate = 0.7
	case successRate < 0:
		successRate = 0
	}

	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-timer.C:
	}

	if m.float64() < successRate {
		nums := make([]int, 8)
		for i := range nums {
			nums[i] = m.intN(10000)
		}
		return Result{
			Succeeded: true,
			Payload: map[string]any{
				"summary":        "Mock computation finished successfully.",
				"random_numbers": nums,
				"notes":          "Replace with real model outputs later.",
			},
		}, nil
	}

	return Result{
		Succeeded: false,
		Payload: map[string]any{
			"error_code": "E_RUN_001",
			"message":    "Mock failure: job could not be read / could not be run.",
			"hint":       "This is simulated; replace with real error reporting later.",
		},
	}, nil
}

func (m *MockExecutor) float64() float64 {
	if m.Rand != nil {
		return m.Rand.Float64()
	}
	return rand.Float64()
}

func (m *MockExecutor) intN(n int) int {
	if m.Rand != nil {
		return m.Rand.IntN(n)
	}
	return rand.IntN(n)
}
