package main

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func useTestConfig(t *testing.T, mutate func(*Config)) {
	t.Helper()
	cfg := testSearchConfig()
	cfg.AiQueueEnabled = false
	if mutate != nil {
		mutate(&cfg)
	}
	configStore.Update(cfg)
	t.Cleanup(func() {
		configStore.Update(DefaultConfig())
		FlushGlobalCaches()
	})
}

func TestSolverSyncSolve(t *testing.T) {
	useTestConfig(t, func(cfg *Config) {
		cfg.AiMaxDepth = 6
		cfg.AiTimeBudgetMs = 0
	})
	solver := NewSolver()
	result, err := solver.Solve(NewBoard(), SolveOptions{})
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if !NewBoard().CanPlay(result.Column) {
		t.Fatalf("returned unplayable column %d", result.Column)
	}
	if result.Depth != 6 {
		t.Fatalf("expected the configured depth, got %d", result.Depth)
	}
}

func TestSolverOptionOverridesBudget(t *testing.T) {
	useTestConfig(t, func(cfg *Config) {
		cfg.AiTimeBudgetMs = 1
	})
	solver := NewSolver()
	// A negative budget disables the configured deadline entirely.
	result, err := solver.Solve(NewBoard(), SolveOptions{BudgetMs: -1, MaxDepth: 5})
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if result.TimedOut {
		t.Fatal("deadline should have been disabled")
	}
	if result.Depth != 5 {
		t.Fatalf("expected depth 5, got %d", result.Depth)
	}
}

func waitForResult(t *testing.T, solver *Solver) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !solver.HasResult() {
		if time.Now().After(deadline) {
			t.Fatal("background solve did not finish in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSolverBackgroundThinking(t *testing.T) {
	useTestConfig(t, nil)
	solver := NewSolver()
	solver.StartThinking(NewBoard(), SolveOptions{BudgetMs: -1, MaxDepth: 4})
	waitForResult(t, solver)
	result, err := solver.TakeResult()
	if err != nil {
		t.Fatalf("background solve failed: %v", err)
	}
	if !NewBoard().CanPlay(result.Column) {
		t.Fatalf("returned unplayable column %d", result.Column)
	}
	if solver.HasResult() {
		t.Fatal("result should be consumed after TakeResult")
	}
}

func TestStartThinkingAdmitsOneWorker(t *testing.T) {
	useTestConfig(t, func(cfg *Config) {
		cfg.AiTimeoutCheckNodes = 1
	})
	solver := NewSolver()
	var started atomic.Int32
	opts := SolveOptions{
		BudgetMs: -1,
		MaxDepth: 42,
		OnDepthComplete: func(progress DepthProgress) {
			if progress.Depth == 1 {
				started.Add(1)
			}
		},
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			solver.StartThinking(NewBoard(), opts)
		}()
	}
	wg.Wait()
	time.Sleep(50 * time.Millisecond)
	solver.Stop()
	deadline := time.Now().Add(2 * time.Second)
	for solver.IsThinking() {
		if time.Now().After(deadline) {
			t.Fatal("worker did not stop in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := started.Load(); got != 1 {
		t.Fatalf("expected exactly one worker to search, got %d", got)
	}
}

func TestSolverStopDropsResult(t *testing.T) {
	useTestConfig(t, func(cfg *Config) {
		cfg.AiTimeoutCheckNodes = 1
	})
	solver := NewSolver()
	solver.StartThinking(NewBoard(), SolveOptions{BudgetMs: -1, MaxDepth: 42})
	solver.Stop()
	deadline := time.Now().Add(2 * time.Second)
	for solver.IsThinking() {
		if time.Now().After(deadline) {
			t.Fatal("worker did not stop in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if solver.HasResult() {
		t.Fatal("a stopped solve must not publish a result")
	}
}
