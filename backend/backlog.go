package main

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

const backlogIdleSleep = 200 * time.Millisecond

// The backlog holds positions whose search ran out of budget. Background
// workers re-search them without a deadline so the shared table deepens
// while the service is idle. The workers only warm the cache; they never
// alter a score a finished search already proved.
type backlogTask struct {
	board       Board
	created     time.Time
	knownDepth  int
	targetDepth int
}

type queueBoardEntry struct {
	Key                 uint64
	Board               Board
	Plies               int
	Created             time.Time
	Hits                int
	CurrentDepth        int
	TargetDepth         int
	Analyzing           bool
	AnalysisStartedAtMs int64
}

type searchBacklog struct {
	mu          sync.Mutex
	queue       []backlogTask
	present     map[uint64]struct{}
	hits        map[uint64]int
	boards      map[uint64]queueBoardEntry
	processing  map[uint64]bool
	hub         *AnalysisHub
	stop        atomic.Bool
	limitWarned bool
}

var searchBacklogManager = newSearchBacklog()

func newSearchBacklog() *searchBacklog {
	return &searchBacklog{
		present:    make(map[uint64]struct{}),
		hits:       make(map[uint64]int),
		boards:     make(map[uint64]queueBoardEntry),
		processing: make(map[uint64]bool),
	}
}

func (b *searchBacklog) SetAnalysisHub(hub *AnalysisHub) {
	b.mu.Lock()
	b.hub = hub
	b.mu.Unlock()
}

func (b *searchBacklog) RequestStop() {
	b.stop.Store(true)
}

func (b *searchBacklog) Resume() {
	b.stop.Store(false)
}

// enqueueBacklogTask queues a position whose search hit its deadline,
// unless the shared table already holds it at the target depth.
func enqueueBacklogTask(board Board, knownDepth int) {
	config := GetConfig()
	if !config.AiQueueEnabled {
		return
	}
	target := totalCells - board.Plies()
	if config.AiQueueMaxDepth > 0 && target > config.AiQueueMaxDepth {
		target = config.AiQueueMaxDepth
	}
	if target <= knownDepth {
		return
	}
	tt := ensureTT(SharedSearchCache(), config)
	if entry, ok := tt.Probe(board.Key()); ok && entry.Flag == TTExact && entry.Depth >= target {
		return
	}
	searchBacklogManager.enqueue(backlogTask{
		board:       board,
		created:     time.Now(),
		knownDepth:  knownDepth,
		targetDepth: target,
	}, false)
}

func (b *searchBacklog) enqueue(task backlogTask, front bool) {
	var eventPayload analysisPayload
	b.mu.Lock()
	key := task.board.Key()
	b.hits[key]++
	entry, known := b.boards[key]
	if !known {
		entry = queueBoardEntry{
			Key:          key,
			Board:        task.board,
			Plies:        task.board.Plies(),
			Created:      task.created,
			CurrentDepth: task.knownDepth,
			TargetDepth:  task.targetDepth,
		}
	}
	if task.knownDepth > entry.CurrentDepth {
		entry.CurrentDepth = task.knownDepth
	}
	if task.targetDepth > entry.TargetDepth {
		entry.TargetDepth = task.targetDepth
	}
	entry.Hits = b.hits[key]
	b.boards[key] = entry
	if _, ok := b.present[key]; ok {
		eventPayload = b.queueEventLocked("board_hit", key)
		b.mu.Unlock()
		b.publishEvent(eventPayload)
		return
	}
	limit := GetConfig().AiQueueLimit
	if limit > 0 && len(b.queue) >= limit {
		if !b.limitWarned {
			log.Warn().Int("size", len(b.queue)+1).Int("limit", limit).Msg("backlog queue exceeded limit")
			b.limitWarned = true
		}
	}
	if front {
		b.queue = append([]backlogTask{task}, b.queue...)
	} else {
		b.queue = append(b.queue, task)
	}
	b.present[key] = struct{}{}
	eventPayload = b.queueEventLocked("board_added", key)
	b.mu.Unlock()
	b.publishEvent(eventPayload)
}

func (b *searchBacklog) pickTaskForProcessing() (backlogTask, uint64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return backlogTask{}, 0, false
	}
	bestIdx := -1
	var bestKey uint64
	var bestEntry queueBoardEntry
	for i, task := range b.queue {
		key := task.board.Key()
		if b.processing[key] {
			continue
		}
		entry, ok := b.boards[key]
		if !ok {
			entry = queueBoardEntry{
				Key:          key,
				Board:        task.board,
				Plies:        task.board.Plies(),
				Created:      task.created,
				Hits:         b.hits[key],
				CurrentDepth: task.knownDepth,
				TargetDepth:  task.targetDepth,
			}
		}
		if bestIdx == -1 || compareQueuePriority(entry, bestEntry) < 0 {
			bestIdx = i
			bestKey = key
			bestEntry = entry
		}
	}
	if bestIdx == -1 {
		return backlogTask{}, 0, false
	}
	b.processing[bestKey] = true
	return b.queue[bestIdx], bestKey, true
}

func (b *searchBacklog) markAnalyzing(key uint64) {
	var eventPayload analysisPayload
	b.mu.Lock()
	if entry, ok := b.boards[key]; ok {
		entry.Analyzing = true
		entry.AnalysisStartedAtMs = time.Now().UnixMilli()
		b.boards[key] = entry
	}
	eventPayload = b.queueEventLocked("board_analyzing", key)
	b.mu.Unlock()
	b.publishEvent(eventPayload)
}

func (b *searchBacklog) updateDepth(key uint64, depth int) {
	b.mu.Lock()
	if entry, ok := b.boards[key]; ok && depth > entry.CurrentDepth {
		entry.CurrentDepth = depth
		b.boards[key] = entry
	}
	b.mu.Unlock()
}

func (b *searchBacklog) finishTaskProcessing(key uint64, remove bool) {
	var eventPayload analysisPayload
	b.mu.Lock()
	delete(b.processing, key)
	if entry, ok := b.boards[key]; ok {
		entry.Analyzing = false
		entry.AnalysisStartedAtMs = 0
		b.boards[key] = entry
	}
	if !remove {
		eventPayload = b.queueEventLocked("board_paused", key)
		b.mu.Unlock()
		b.publishEvent(eventPayload)
		return
	}
	for i, task := range b.queue {
		if task.board.Key() == key {
			b.queue = append(b.queue[:i], b.queue[i+1:]...)
			break
		}
	}
	delete(b.present, key)
	delete(b.hits, key)
	delete(b.boards, key)
	eventPayload = b.queueEventLocked("board_done", key)
	b.mu.Unlock()
	b.publishEvent(eventPayload)
}

func (b *searchBacklog) queueEventLocked(event string, key uint64) analysisPayload {
	payload := analysisPayload{
		Event:        event,
		TotalInQueue: len(b.queue),
		UpdatedAt:    time.Now().UnixMilli(),
	}
	if entry, ok := b.boards[key]; ok {
		payload.Board = &queueBoardEventDTO{
			ID:                  boardID(entry.Key),
			CurrentDepth:        entry.CurrentDepth,
			TargetDepth:         entry.TargetDepth,
			Hits:                entry.Hits,
			Analyzing:           entry.Analyzing,
			AnalysisStartedAtMs: entry.AnalysisStartedAtMs,
		}
	} else {
		payload.Board = &queueBoardEventDTO{ID: boardID(key)}
	}
	return payload
}

func (b *searchBacklog) publishEvent(payload analysisPayload) {
	b.mu.Lock()
	hub := b.hub
	b.mu.Unlock()
	if hub != nil {
		hub.Publish(payload)
	}
}

func (b *searchBacklog) TopQueue(limit int) []queueBoardDTO {
	b.mu.Lock()
	entries := make([]queueBoardEntry, 0, len(b.present))
	for key := range b.present {
		if entry, ok := b.boards[key]; ok {
			entries = append(entries, entry)
		}
	}
	b.mu.Unlock()
	sortQueueBoards(entries)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]queueBoardDTO, 0, len(entries))
	for _, entry := range entries {
		out = append(out, queueBoardDTO{
			ID:                  boardID(entry.Key),
			Grid:                gridFromBoard(entry.Board),
			CurrentDepth:        entry.CurrentDepth,
			TargetDepth:         entry.TargetDepth,
			Hits:                entry.Hits,
			Analyzing:           entry.Analyzing,
			AnalysisStartedAtMs: entry.AnalysisStartedAtMs,
		})
	}
	return out
}

func (b *searchBacklog) TotalQueue() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

func backlogWorkerCount(cfg Config) int {
	workers := cfg.AiQueueWorkers
	if workers <= 0 {
		workers = 1
	}
	if max := runtime.GOMAXPROCS(0); workers > max {
		workers = max
	}
	return workers
}

func startBacklogWorkers(done <-chan struct{}) {
	cfg := GetConfig()
	if !cfg.AiQueueEnabled {
		return
	}
	for i := 0; i < backlogWorkerCount(cfg); i++ {
		go backlogWorkerLoop(done)
	}
}

func backlogWorkerLoop(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}
		if searchBacklogManager.stop.Load() {
			time.Sleep(backlogIdleSleep)
			continue
		}
		task, key, ok := searchBacklogManager.pickTaskForProcessing()
		if !ok {
			time.Sleep(backlogIdleSleep)
			continue
		}
		searchBacklogManager.markAnalyzing(key)
		processBacklogTask(task, key)
	}
}

func processBacklogTask(task backlogTask, key uint64) {
	config := GetConfig()
	stats := &SearchStats{Start: time.Now()}
	settings := SearchSettings{
		MaxDepth:   task.targetDepth,
		BudgetMs:   0,
		Cache:      SharedSearchCache(),
		Config:     config,
		Stats:      stats,
		ShouldStop: func() bool { return searchBacklogManager.stop.Load() },
		OnDepthComplete: func(progress DepthProgress) {
			searchBacklogManager.updateDepth(key, progress.Depth)
		},
	}
	result, err := Solve(task.board, settings)
	if err != nil {
		searchBacklogManager.finishTaskProcessing(key, true)
		return
	}
	if result.TimedOut && result.Depth < task.targetDepth {
		// Stopped mid-way; keep the board queued for a later pass.
		searchBacklogManager.finishTaskProcessing(key, false)
		return
	}
	log.Debug().
		Uint64("key", key).
		Int("depth", result.Depth).
		Int("score", result.Score).
		Int64("nodes", result.Nodes).
		Msg("backlog board analyzed")
	searchBacklogManager.finishTaskProcessing(key, true)
}
