package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type solveRequest struct {
	Grid     [][]int `json:"grid"`
	ToMove   int     `json:"to_move"`
	BudgetMs int     `json:"budget_ms"`
	MaxDepth int     `json:"max_depth"`
}

type solveResponse struct {
	Column    int    `json:"column"`
	Score     int    `json:"score"`
	Depth     int    `json:"depth"`
	Nodes     int64  `json:"nodes"`
	PV        []int  `json:"pv"`
	Reason    string `json:"reason"`
	TimedOut  bool   `json:"timed_out"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

type analyzeResultResponse struct {
	Thinking bool           `json:"thinking"`
	Ready    bool           `json:"ready"`
	Result   *solveResponse `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
}

type statusResponse struct {
	Config     Config                `json:"config"`
	TT         ttCacheStatusResponse `json:"tt"`
	QueueDepth int                   `json:"queue_depth"`
	UptimeMs   int64                 `json:"uptime_ms"`
}

type ttCacheStatusResponse struct {
	Count         int     `json:"count"`
	Capacity      int     `json:"capacity"`
	Usage         float64 `json:"usage"`
	Full          bool    `json:"full"`
	EntryBytes    uint64  `json:"entry_bytes"`
	UsedBytes     uint64  `json:"used_bytes"`
	CapacityBytes uint64  `json:"capacity_bytes"`
	Generation    uint32  `json:"generation"`
}

type ttCacheEntryDTO struct {
	Hash        string `json:"hash"`
	Hits        uint32 `json:"hits"`
	Depth       int    `json:"depth"`
	Score       int32  `json:"score"`
	Flag        string `json:"flag"`
	BestColumn  int    `json:"best_column"`
	GenWritten  uint32 `json:"gen_written"`
	GenLastUsed uint32 `json:"gen_last_used"`
}

type ttCacheEntriesResponse struct {
	Items  []ttCacheEntryDTO `json:"items"`
	Offset int               `json:"offset"`
	Limit  int               `json:"limit"`
	Total  int               `json:"total"`
}

func main() {
	if err := LoadConfig(os.Getenv("CONNECT4_CONFIG")); err != nil {
		setupLogging("info")
		log.Fatal().Err(err).Msg("failed to load config")
	}
	config := GetConfig()
	setupLogging(config.LogLevel)

	started := time.Now()
	cache := SharedSearchCache()
	ensureTT(cache, config)
	loadTTPersistence(config, cache)

	var persistOnce sync.Once
	persistOnShutdown := func(reason string) {
		persistOnce.Do(func() {
			log.Info().Str("reason", reason).Msg("persisting transposition table")
			persistTTPersistence(GetConfig(), cache)
		})
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			log.Error().Interface("panic", recovered).Msg("panic recovered in main")
			persistOnShutdown("panic")
		}
	}()
	defer persistOnShutdown("exit")

	hub := NewAnalysisHub()
	searchBacklogManager.SetAnalysisHub(hub)
	solver := NewSolver()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx.Done())
	startBacklogWorkers(ctx.Done())

	r := newRouter(solver, hub, started)

	server := &http.Server{
		Addr:    config.HTTPAddr,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
		close(serverErrCh)
	}()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	log.Info().Str("addr", config.HTTPAddr).Msg("backend listening")
	var runErr error
	select {
	case <-sigCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err, ok := <-serverErrCh:
		if ok {
			runErr = err
			log.Error().Err(err).Msg("server error")
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("graceful shutdown failed")
		if closeErr := server.Close(); closeErr != nil && !errors.Is(closeErr, http.ErrServerClosed) {
			log.Error().Err(closeErr).Msg("forced close failed")
		}
	}

	cancel()
	searchBacklogManager.RequestStop()
	solver.Stop()
	persistOnShutdown("shutdown")
	if runErr != nil {
		log.Error().Err(runErr).Msg("exiting after server error")
	}
}

func newRouter(solver *Solver, hub *AnalysisHub, started time.Time) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/api/ping", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	r.Get("/api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, statusResponse{
			Config:     GetConfig(),
			TT:         ttCacheStatus(),
			QueueDepth: searchBacklogManager.TotalQueue(),
			UptimeMs:   time.Since(started).Milliseconds(),
		})
	})

	r.Post("/api/solve", func(w http.ResponseWriter, r *http.Request) {
		var payload solveRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}
		board, err := boardFromGrid(payload.Grid, payload.ToMove)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		result, err := solver.Solve(board, SolveOptions{
			BudgetMs:        payload.BudgetMs,
			MaxDepth:        payload.MaxDepth,
			OnDepthComplete: hub.PublishDepth,
		})
		if err != nil {
			writeJSON(w, solveErrorStatus(err), map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, resultToResponse(result))
	})

	r.Post("/api/analyze", func(w http.ResponseWriter, r *http.Request) {
		var payload solveRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}
		board, err := boardFromGrid(payload.Grid, payload.ToMove)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if solver.IsThinking() {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "analysis already running"})
			return
		}
		solver.StartThinking(board, SolveOptions{
			BudgetMs:        payload.BudgetMs,
			MaxDepth:        payload.MaxDepth,
			OnDepthComplete: hub.PublishDepth,
		})
		writeJSON(w, http.StatusAccepted, map[string]bool{"started": true})
	})

	r.Get("/api/analyze/result", func(w http.ResponseWriter, r *http.Request) {
		resp := analyzeResultResponse{Thinking: solver.IsThinking()}
		if solver.HasResult() {
			result, err := solver.TakeResult()
			resp.Ready = true
			if err != nil {
				resp.Error = err.Error()
			} else {
				converted := resultToResponse(result)
				resp.Result = &converted
			}
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Post("/api/settings", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Config *Config `json:"config"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Config == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}
		configStore.Update(*payload.Config)
		solver.ResetForConfigChange()
		ensureTT(SharedSearchCache(), GetConfig())
		writeJSON(w, http.StatusOK, map[string]any{"config": GetConfig()})
	})

	r.Get("/api/queue", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, queueResponse{
			Queue:        searchBacklogManager.TopQueue(queueTopBoardsLimit()),
			TotalInQueue: searchBacklogManager.TotalQueue(),
		})
	})

	r.Get("/api/cache/tt", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, ttCacheStatus())
	})
	r.Delete("/api/cache/tt", func(w http.ResponseWriter, r *http.Request) {
		FlushGlobalCaches()
		writeJSON(w, http.StatusOK, map[string]any{"cleared": true})
	})
	r.Get("/api/cache/tt/entries", func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 10
		}
		if limit > 100 {
			limit = 100
		}
		if offset < 0 {
			offset = 0
		}
		writeJSON(w, http.StatusOK, ttCacheEntries(offset, limit))
	})
	r.Delete("/api/cache/tt/entries/{hash}", func(w http.ResponseWriter, r *http.Request) {
		hash, err := parseTTKey(chi.URLParam(r, "hash"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid hash"})
			return
		}
		tt := ensureTT(SharedSearchCache(), GetConfig())
		writeJSON(w, http.StatusOK, map[string]any{
			"deleted": tt.DeleteByKey(hash),
			"hash":    fmt.Sprintf("0x%016x", hash),
		})
	})

	r.Get("/ws/analysis", func(w http.ResponseWriter, r *http.Request) {
		serveAnalysisWS(hub, w, r)
	})

	return r
}

func resultToResponse(result SearchResult) solveResponse {
	pv := result.PV
	if pv == nil {
		pv = []int{}
	}
	return solveResponse{
		Column:    result.Column,
		Score:     result.Score,
		Depth:     result.Depth,
		Nodes:     result.Nodes,
		PV:        pv,
		Reason:    result.Reason,
		TimedOut:  result.TimedOut,
		ElapsedMs: result.Elapsed.Milliseconds(),
	}
}

func solveErrorStatus(err error) int {
	var noMove *NoLegalMoveError
	if errors.As(err, &noMove) {
		return http.StatusConflict
	}
	var illegal *IllegalMoveError
	if errors.As(err, &illegal) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func ttCacheStatus() ttCacheStatusResponse {
	tt := ensureTT(SharedSearchCache(), GetConfig())
	count := tt.Count()
	capacity := tt.Capacity()
	entryBytes := uint64(unsafe.Sizeof(TTEntry{}))
	usage := 0.0
	full := false
	if capacity > 0 {
		usage = float64(count) / float64(capacity)
		full = count >= capacity
	}
	return ttCacheStatusResponse{
		Count:         count,
		Capacity:      capacity,
		Usage:         usage,
		Full:          full,
		EntryBytes:    entryBytes,
		UsedBytes:     uint64(count) * entryBytes,
		CapacityBytes: uint64(capacity) * entryBytes,
		Generation:    tt.Generation(),
	}
}

func ttCacheEntries(offset int, limit int) ttCacheEntriesResponse {
	tt := ensureTT(SharedSearchCache(), GetConfig())
	entries, total := tt.TopEntriesByHits(offset, limit)
	items := make([]ttCacheEntryDTO, 0, len(entries))
	for _, entry := range entries {
		items = append(items, ttEntryToDTO(entry))
	}
	return ttCacheEntriesResponse{
		Items:  items,
		Offset: offset,
		Limit:  limit,
		Total:  total,
	}
}

func ttEntryToDTO(entry TTEntry) ttCacheEntryDTO {
	return ttCacheEntryDTO{
		Hash:        fmt.Sprintf("0x%016x", entry.Key),
		Hits:        entry.Hits,
		Depth:       entry.Depth,
		Score:       entry.Score,
		Flag:        ttFlagString(entry.Flag),
		BestColumn:  int(entry.BestCol),
		GenWritten:  entry.GenWritten,
		GenLastUsed: entry.GenLastUsed,
	}
}

func ttFlagString(flag TTFlag) string {
	switch flag {
	case TTExact:
		return "EXACT"
	case TTLower:
		return "LOWER"
	case TTUpper:
		return "UPPER"
	default:
		return "UNKNOWN"
	}
}

func parseTTKey(raw string) (uint64, error) {
	if raw == "" {
		return 0, errors.New("empty")
	}
	return strconv.ParseUint(raw, 0, 64)
}

func boardID(key uint64) string {
	return "0x" + strconv.FormatUint(key, 16)
}

func mustMarshal(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
