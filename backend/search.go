package main

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// Wins are encoded as winScore minus the number of discs on the board
	// when the winning disc lands, so a faster win always scores strictly
	// higher and a slower loss strictly higher than a faster one. The
	// heuristic never comes anywhere near this range.
	winScore = 1_000_000
	infScore = winScore + 1

	// provenWin is the smallest score a forced win can take (a win on the
	// very last disc). Reaching it at the root ends iterative deepening.
	provenWin = winScore - totalCells

	defaultTimeoutCheckNodes = 1024
)

type SearchStats struct {
	Start           time.Time
	Nodes           int64
	TTProbes        int64
	TTHits          int64
	TTExactHits     int64
	TTLowerHits     int64
	TTUpperHits     int64
	TTStores        int64
	TTOverwrites    int64
	TTCutoffs       int64
	Cutoffs         int64
	Researches      int64
	CompletedDepths int
	DepthDurations  []time.Duration
}

type SearchSettings struct {
	// MaxDepth caps iterative deepening; zero means search to the number
	// of empty cells.
	MaxDepth int
	// BudgetMs is the wall-clock budget; zero means no deadline.
	BudgetMs int
	Cache    *SearchCache
	Config   Config
	Stats    *SearchStats
	// ShouldStop cooperatively aborts the search when it returns true.
	ShouldStop func() bool
	// OnDepthComplete fires after every fully completed depth.
	OnDepthComplete func(DepthProgress)
}

type DepthProgress struct {
	Depth   int
	Column  int
	Score   int
	Nodes   int64
	Elapsed time.Duration
}

type SearchResult struct {
	Column   int
	Score    int
	Depth    int
	Nodes    int64
	PV       []int
	Reason   string
	TimedOut bool
	Elapsed  time.Duration
}

// searchContext carries the per-search machinery through the recursion.
type searchContext struct {
	tt          *TranspositionTable
	stats       *SearchStats
	weights     HeuristicConfig
	deadline    time.Time
	hasDeadline bool
	shouldStop  func() bool
	checkEvery  int64
	nextCheck   int64
	aborted     bool
}

// timedOut consults the clock only every checkEvery nodes; in between it
// is a single comparison. Once it trips, it stays tripped.
func (ctx *searchContext) timedOut() bool {
	if ctx.aborted {
		return true
	}
	if ctx.stats.Nodes < ctx.nextCheck {
		return false
	}
	ctx.nextCheck = ctx.stats.Nodes + ctx.checkEvery
	if ctx.shouldStop != nil && ctx.shouldStop() {
		ctx.aborted = true
		return true
	}
	if ctx.hasDeadline && time.Now().After(ctx.deadline) {
		ctx.aborted = true
		return true
	}
	return false
}

func winValueNow(b Board) int {
	return winScore - (b.plies + 1)
}

func lossValueNow(b Board) int {
	return -(winScore - (b.plies + 2))
}

// Solve picks a column for the side to move. Terminal positions return
// NoLegalMoveError; an exhausted budget is not an error, the best result
// of the last fully completed depth comes back instead.
func Solve(b Board, settings SearchSettings) (SearchResult, error) {
	stats := settings.Stats
	if stats == nil {
		stats = &SearchStats{}
	}
	if stats.Start.IsZero() {
		stats.Start = time.Now()
	}
	config := settings.Config

	if b.HasWinner() || b.IsFull() {
		return SearchResult{Column: -1}, &NoLegalMoveError{}
	}

	// Obvious moves never consult the clock.
	if col, ok := winInOne(b); ok {
		return SearchResult{
			Column:  col,
			Score:   winValueNow(b),
			Depth:   1,
			Nodes:   stats.Nodes,
			PV:      []int{col},
			Reason:  "win_in_1",
			Elapsed: time.Since(stats.Start),
		}, nil
	}
	nonLosing := b.NonLosingMoves()
	if nonLosing == 0 {
		// Every reply hands the opponent the game; resist from the
		// center out.
		col := firstPlayable(b.possibleMask())
		return SearchResult{
			Column:  col,
			Score:   lossValueNow(b),
			Depth:   1,
			Nodes:   stats.Nodes,
			PV:      []int{col},
			Reason:  "lost",
			Elapsed: time.Since(stats.Start),
		}, nil
	}
	if col, ok := singleColumn(nonLosing); ok {
		return SearchResult{
			Column:  col,
			Score:   0,
			Depth:   1,
			Nodes:   stats.Nodes,
			PV:      []int{col},
			Reason:  "forced_block",
			Elapsed: time.Since(stats.Start),
		}, nil
	}

	cache := settings.Cache
	if cache == nil {
		cache = SharedSearchCache()
	}
	tt := ensureTT(cache, config)
	tt.NextGeneration()

	checkEvery := int64(config.AiTimeoutCheckNodes)
	if checkEvery <= 0 {
		checkEvery = defaultTimeoutCheckNodes
	}
	ctx := &searchContext{
		tt:         tt,
		stats:      stats,
		weights:    config.Heuristics,
		shouldStop: settings.ShouldStop,
		checkEvery: checkEvery,
		nextCheck:  checkEvery,
	}
	if settings.BudgetMs > 0 {
		ctx.deadline = stats.Start.Add(time.Duration(settings.BudgetMs) * time.Millisecond)
		ctx.hasDeadline = true
	}

	maxDepth := totalCells - b.plies
	if settings.MaxDepth > 0 && settings.MaxDepth < maxDepth {
		maxDepth = settings.MaxDepth
	}

	best := SearchResult{Column: -1, Reason: "search"}
	for depth := 1; depth <= maxDepth; depth++ {
		depthStart := time.Now()
		col, score, done := searchRoot(b, ctx, depth)
		if !done {
			break
		}
		stats.CompletedDepths = depth
		stats.DepthDurations = append(stats.DepthDurations, time.Since(depthStart))
		best.Column = col
		best.Score = score
		best.Depth = depth
		if settings.OnDepthComplete != nil {
			settings.OnDepthComplete(DepthProgress{
				Depth:   depth,
				Column:  col,
				Score:   score,
				Nodes:   stats.Nodes,
				Elapsed: time.Since(stats.Start),
			})
		}
		// A proven result cannot improve at deeper horizons.
		if score >= provenWin || score <= -provenWin {
			break
		}
	}
	best.TimedOut = ctx.aborted

	if best.Column < 0 {
		// The budget did not cover even a depth-1 pass; answer with a
		// safe column anyway.
		best.Column = firstPlayable(nonLosing)
		best.Depth = 0
		best.Reason = "budget_exhausted"
		best.PV = []int{best.Column}
	} else {
		best.PV = principalVariation(b, tt, best.Depth)
	}
	best.Nodes = stats.Nodes
	best.Elapsed = time.Since(stats.Start)
	if config.AiLogSearchStats {
		logSearchStats("solve", stats, tt)
	}
	return best, nil
}

func searchRoot(b Board, ctx *searchContext, depth int) (int, int, bool) {
	alpha, beta := -infScore, infScore
	key := b.Key()
	ttBest := -1
	ctx.stats.TTProbes++
	if entry, ok := ctx.tt.Probe(key); ok {
		ctx.stats.TTHits++
		ttBest = int(entry.BestCol)
	}
	allowed := b.NonLosingMoves()
	if allowed == 0 {
		allowed = b.possibleMask()
	}
	bestCol := -1
	bestScore := -infScore
	for i, col := range orderedColumns(allowed, ttBest) {
		child := b.play(col)
		var score int
		if i == 0 {
			score = -negamax(child, ctx, depth-1, -beta, -alpha)
		} else {
			score = -negamax(child, ctx, depth-1, -alpha-1, -alpha)
			if !ctx.aborted && score > alpha {
				ctx.stats.Researches++
				score = -negamax(child, ctx, depth-1, -beta, -score)
			}
		}
		if ctx.aborted {
			return -1, 0, false
		}
		if score > bestScore {
			bestScore = score
			bestCol = col
		}
		if score > alpha {
			alpha = score
		}
	}
	if bestCol < 0 {
		return -1, 0, false
	}
	ctx.stats.TTStores++
	if replaced, overwrote := ctx.tt.Store(key, depth, bestScore, TTExact, bestCol); replaced || overwrote {
		ctx.stats.TTOverwrites++
	}
	return bestCol, bestScore, true
}

// negamax searches with alpha-beta pruning and principal-variation
// search: the first candidate gets the full window, the rest a null
// window with a re-search on improvement. Scores are from the side to
// move's point of view.
func negamax(b Board, ctx *searchContext, depth, alpha, beta int) int {
	ctx.stats.Nodes++
	if ctx.timedOut() {
		return 0
	}
	if b.IsFull() {
		return 0
	}
	// A win in one is decided before any table lookup or descent.
	if b.winningMask()&b.possibleMask() != 0 {
		return winValueNow(b)
	}
	if depth <= 0 {
		return evaluateBoard(b, ctx.weights)
	}
	allowed := b.NonLosingMoves()
	if allowed == 0 {
		return lossValueNow(b)
	}

	alphaOrig, betaOrig := alpha, beta
	key := b.Key()
	ttBest := -1
	ctx.stats.TTProbes++
	if entry, ok := ctx.tt.Probe(key); ok {
		ctx.stats.TTHits++
		switch entry.Flag {
		case TTExact:
			ctx.stats.TTExactHits++
		case TTLower:
			ctx.stats.TTLowerHits++
		case TTUpper:
			ctx.stats.TTUpperHits++
		}
		ttBest = int(entry.BestCol)
		if _, ret, value := applyTTEntry(entry, depth, &alpha, &beta, ctx.stats); ret {
			ctx.stats.TTCutoffs++
			return value
		}
	}

	bestScore := -infScore
	bestCol := -1
	for i, col := range orderedColumns(allowed, ttBest) {
		child := b.play(col)
		var score int
		if i == 0 {
			score = -negamax(child, ctx, depth-1, -beta, -alpha)
		} else {
			score = -negamax(child, ctx, depth-1, -alpha-1, -alpha)
			if !ctx.aborted && score > alpha && score < beta {
				ctx.stats.Researches++
				score = -negamax(child, ctx, depth-1, -beta, -score)
			}
		}
		if ctx.aborted {
			return 0
		}
		if score > bestScore {
			bestScore = score
			bestCol = col
		}
		if score > alpha {
			alpha = score
		}
		if alpha >= beta {
			ctx.stats.Cutoffs++
			break
		}
	}

	flag := TTExact
	if bestScore <= alphaOrig {
		flag = TTUpper
	} else if bestScore >= betaOrig {
		flag = TTLower
	}
	ctx.stats.TTStores++
	if replaced, overwrote := ctx.tt.Store(key, depth, bestScore, flag, bestCol); replaced || overwrote {
		ctx.stats.TTOverwrites++
	}
	return bestScore
}

// applyTTEntry folds a table hit into the window. EXACT entries return
// immediately; LOWER raises alpha, UPPER lowers beta, and a collapsed
// window cuts the node. Win scores need no ply adjustment because they
// are a function of the disc count, which the position determines.
func applyTTEntry(entry TTEntry, depth int, alpha, beta *int, stats *SearchStats) (used bool, ret bool, value int) {
	if entry.Depth < depth {
		return false, false, 0
	}
	value = int(entry.Score)
	switch entry.Flag {
	case TTExact:
		return true, true, value
	case TTLower:
		if value > *alpha {
			*alpha = value
		}
	case TTUpper:
		if value < *beta {
			*beta = value
		}
	}
	if *alpha >= *beta {
		if stats != nil {
			stats.Cutoffs++
		}
		return true, true, value
	}
	return true, false, value
}

func winInOne(b Board) (int, bool) {
	wins := b.winningMask() & b.possibleMask()
	if wins == 0 {
		return -1, false
	}
	for _, col := range columnExploreOrder {
		if wins&columnMask(col) != 0 {
			return col, true
		}
	}
	return -1, false
}

func singleColumn(allowed uint64) (int, bool) {
	if allowed == 0 || allowed&(allowed-1) != 0 {
		return -1, false
	}
	for col := 0; col < boardWidth; col++ {
		if allowed&columnMask(col) != 0 {
			return col, true
		}
	}
	return -1, false
}

func firstPlayable(allowed uint64) int {
	for _, col := range columnExploreOrder {
		if allowed&columnMask(col) != 0 {
			return col
		}
	}
	return -1
}

// principalVariation replays the table's best columns from the root.
func principalVariation(b Board, tt *TranspositionTable, maxLen int) []int {
	pv := make([]int, 0, maxLen)
	current := b
	for len(pv) < maxLen {
		entry, ok := tt.Probe(current.Key())
		if !ok || int(entry.BestCol) < 0 {
			break
		}
		col := int(entry.BestCol)
		if !current.CanPlay(col) {
			break
		}
		pv = append(pv, col)
		current = current.play(col)
		if current.HasWinner() || current.IsFull() {
			break
		}
	}
	return pv
}

func logSearchStats(tag string, stats *SearchStats, tt *TranspositionTable) {
	elapsed := time.Since(stats.Start)
	nps := 0.0
	if elapsed > 0 {
		nps = float64(stats.Nodes) / elapsed.Seconds()
	}
	ttHitRate := 0.0
	if stats.TTProbes > 0 {
		ttHitRate = float64(stats.TTHits) * 100.0 / float64(stats.TTProbes)
	}
	parts := make([]string, 0, len(stats.DepthDurations))
	for _, d := range stats.DepthDurations {
		parts = append(parts, d.Round(time.Millisecond).String())
	}
	log.Debug().
		Str("tag", tag).
		Dur("elapsed", elapsed).
		Int("completed", stats.CompletedDepths).
		Int64("nodes", stats.Nodes).
		Float64("nps", nps).
		Int("tt_size", tt.Count()).
		Int64("tt_probes", stats.TTProbes).
		Int64("tt_hits", stats.TTHits).
		Float64("tt_hit_rate", ttHitRate).
		Int64("tt_stores", stats.TTStores).
		Int64("tt_cutoffs", stats.TTCutoffs).
		Int64("cutoffs", stats.Cutoffs).
		Int64("researches", stats.Researches).
		Str("depth_times", strings.Join(parts, ",")).
		Msg("search stats")
}
