package main

import (
	"runtime"
	"testing"
	"time"
)

func TestBacklogWorkerCountBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AiQueueWorkers = 0
	if got := backlogWorkerCount(cfg); got != 1 {
		t.Fatalf("expected at least one worker, got %d", got)
	}
	cfg.AiQueueWorkers = 9999
	if got := backlogWorkerCount(cfg); got != runtime.GOMAXPROCS(0) {
		t.Fatalf("expected the worker count capped at GOMAXPROCS, got %d", got)
	}
}

func backlogTaskFor(t *testing.T, cols ...int) backlogTask {
	t.Helper()
	board := playMoves(t, cols...)
	return backlogTask{
		board:       board,
		created:     time.Now(),
		knownDepth:  3,
		targetDepth: totalCells - board.Plies(),
	}
}

func TestBacklogEnqueueDeduplicates(t *testing.T) {
	backlog := newSearchBacklog()
	task := backlogTaskFor(t, 3, 0)
	backlog.enqueue(task, false)
	backlog.enqueue(task, false)
	if got := backlog.TotalQueue(); got != 1 {
		t.Fatalf("duplicate enqueue should collapse to one task, got %d", got)
	}
	top := backlog.TopQueue(10)
	if len(top) != 1 {
		t.Fatalf("expected one queued board, got %d", len(top))
	}
	if top[0].Hits != 2 {
		t.Fatalf("expected 2 hits on the deduplicated board, got %d", top[0].Hits)
	}
}

func TestBacklogTracksEmptyBoard(t *testing.T) {
	// The empty board's key is 0; the bookkeeping must not treat it as
	// "no entry".
	backlog := newSearchBacklog()
	task := backlogTask{
		board:       NewBoard(),
		created:     time.Now(),
		knownDepth:  2,
		targetDepth: totalCells,
	}
	backlog.enqueue(task, false)
	task.knownDepth = 5
	backlog.enqueue(task, false)

	top := backlog.TopQueue(10)
	if len(top) != 1 {
		t.Fatalf("expected one queued board, got %d", len(top))
	}
	if top[0].Hits != 2 {
		t.Fatalf("expected 2 hits on the empty board, got %d", top[0].Hits)
	}
	if top[0].CurrentDepth != 5 {
		t.Fatalf("expected the deeper known depth kept, got %d", top[0].CurrentDepth)
	}

	_, key, ok := backlog.pickTaskForProcessing()
	if !ok || key != 0 {
		t.Fatalf("expected the empty board picked, got key %#x ok=%v", key, ok)
	}
	backlog.updateDepth(key, 9)
	if got := backlog.TopQueue(10)[0].CurrentDepth; got != 9 {
		t.Fatalf("depth update lost for key 0, got %d", got)
	}
	backlog.finishTaskProcessing(key, true)
	if got := backlog.TotalQueue(); got != 0 {
		t.Fatalf("expected the empty board removed, got %d queued", got)
	}
}

func TestBacklogPicksMostRequestedFirst(t *testing.T) {
	backlog := newSearchBacklog()
	cold := backlogTaskFor(t, 3, 0)
	hot := backlogTaskFor(t, 2, 5)
	backlog.enqueue(cold, false)
	backlog.enqueue(hot, false)
	backlog.enqueue(hot, false)
	backlog.enqueue(hot, false)

	task, key, ok := backlog.pickTaskForProcessing()
	if !ok {
		t.Fatal("expected a task")
	}
	if key != hot.board.Key() {
		t.Fatalf("expected the most requested board first, got key %#x", key)
	}
	if task.board.Key() != key {
		t.Fatal("picked task does not match its key")
	}

	// The picked board is marked in flight; the next pick skips it.
	_, nextKey, ok := backlog.pickTaskForProcessing()
	if !ok {
		t.Fatal("expected the remaining task")
	}
	if nextKey != cold.board.Key() {
		t.Fatalf("in-flight board should be skipped, got key %#x", nextKey)
	}
}

func TestBacklogFinishRemovesOrPauses(t *testing.T) {
	backlog := newSearchBacklog()
	task := backlogTaskFor(t, 3, 0)
	backlog.enqueue(task, false)
	_, key, ok := backlog.pickTaskForProcessing()
	if !ok {
		t.Fatal("expected a task")
	}

	backlog.finishTaskProcessing(key, false)
	if got := backlog.TotalQueue(); got != 1 {
		t.Fatalf("a paused board should stay queued, got %d", got)
	}
	if _, _, ok := backlog.pickTaskForProcessing(); !ok {
		t.Fatal("a paused board should be pickable again")
	}

	backlog.finishTaskProcessing(key, true)
	if got := backlog.TotalQueue(); got != 0 {
		t.Fatalf("a finished board should leave the queue, got %d", got)
	}
}

func TestEnqueueBacklogTaskSkipsSolvedPositions(t *testing.T) {
	useTestConfig(t, func(cfg *Config) {
		cfg.AiQueueEnabled = true
	})
	board := playMoves(t, 3, 0)
	target := totalCells - board.Plies()
	tt := ensureTT(SharedSearchCache(), GetConfig())
	tt.Store(board.Key(), target, 100, TTExact, 3)
	t.Cleanup(func() { drainBacklog(board.Key()) })

	before := searchBacklogManager.TotalQueue()
	enqueueBacklogTask(board, 5)
	if got := searchBacklogManager.TotalQueue(); got != before {
		t.Fatalf("a fully solved position must not be queued: %d -> %d", before, got)
	}
}

func TestEnqueueBacklogTaskHonorsDisabledQueue(t *testing.T) {
	useTestConfig(t, nil) // queue disabled
	board := playMoves(t, 2, 6)
	before := searchBacklogManager.TotalQueue()
	enqueueBacklogTask(board, 5)
	if got := searchBacklogManager.TotalQueue(); got != before {
		t.Fatalf("queueing is disabled: %d -> %d", before, got)
	}
}

func drainBacklog(key uint64) {
	searchBacklogManager.finishTaskProcessing(key, true)
}
