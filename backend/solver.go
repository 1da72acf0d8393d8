package main

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Solver wraps the search with the process-wide cache, the configured
// budgets and the backlog hand-off. Solve is synchronous; the
// StartThinking surface runs the same search on a worker goroutine with a
// cooperative stop signal.
type Solver struct {
	resultMutex sync.Mutex
	workerDone  chan struct{}
	thinking    atomic.Bool
	resultReady atomic.Bool
	stopSignal  atomic.Bool
	result      SearchResult
	resultErr   error
}

type SolveOptions struct {
	// BudgetMs overrides the configured time budget; negative disables
	// the deadline entirely, zero keeps the configured value.
	BudgetMs        int
	MaxDepth        int
	OnDepthComplete func(DepthProgress)
}

func NewSolver() *Solver {
	return &Solver{}
}

func (s *Solver) Solve(b Board, opts SolveOptions) (SearchResult, error) {
	config := GetConfig()
	budget := config.AiTimeBudgetMs
	if opts.BudgetMs > 0 {
		budget = opts.BudgetMs
	} else if opts.BudgetMs < 0 {
		budget = 0
	}
	maxDepth := config.AiMaxDepth
	if opts.MaxDepth > 0 {
		maxDepth = opts.MaxDepth
	}
	stats := &SearchStats{Start: time.Now()}
	settings := SearchSettings{
		MaxDepth:        maxDepth,
		BudgetMs:        budget,
		Cache:           SharedSearchCache(),
		Config:          config,
		Stats:           stats,
		ShouldStop:      func() bool { return s.stopSignal.Load() },
		OnDepthComplete: opts.OnDepthComplete,
	}
	result, err := Solve(b, settings)
	if err != nil {
		return result, err
	}
	if result.TimedOut {
		enqueueBacklogTask(b, result.Depth)
	}
	return result, nil
}

// StartThinking launches a background solve. Only one worker runs at a
// time: losing the claim on thinking is a no-op.
func (s *Solver) StartThinking(b Board, opts SolveOptions) {
	if !s.thinking.CompareAndSwap(false, true) {
		return
	}
	if prev := s.loadWorkerDone(); prev != nil {
		<-prev
	}
	s.resultReady.Store(false)
	s.stopSignal.Store(false)

	done := make(chan struct{})
	s.storeWorkerDone(done)
	go func() {
		defer close(done)
		result, err := s.Solve(b, opts)
		if s.stopSignal.Load() {
			s.resultReady.Store(false)
			s.thinking.Store(false)
			return
		}
		s.resultMutex.Lock()
		s.result = result
		s.resultErr = err
		s.resultMutex.Unlock()
		s.resultReady.Store(true)
		s.thinking.Store(false)
		if err != nil {
			log.Debug().Err(err).Msg("background solve finished without a move")
		}
	}()
}

func (s *Solver) IsThinking() bool {
	return s.thinking.Load()
}

func (s *Solver) HasResult() bool {
	return s.resultReady.Load()
}

func (s *Solver) TakeResult() (SearchResult, error) {
	s.resultMutex.Lock()
	defer s.resultMutex.Unlock()
	s.resultReady.Store(false)
	return s.result, s.resultErr
}

// Stop aborts an in-flight background solve. The worker drops its result.
func (s *Solver) Stop() {
	s.stopSignal.Store(true)
}

func (s *Solver) ResetForConfigChange() {
	s.stopSignal.Store(true)
	if done := s.loadWorkerDone(); done != nil {
		<-done
	}
	s.stopSignal.Store(false)
	s.resultReady.Store(false)
}

func (s *Solver) loadWorkerDone() chan struct{} {
	s.resultMutex.Lock()
	defer s.resultMutex.Unlock()
	return s.workerDone
}

func (s *Solver) storeWorkerDone(done chan struct{}) {
	s.resultMutex.Lock()
	s.workerDone = done
	s.resultMutex.Unlock()
}
