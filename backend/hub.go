package main

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// analysisPayload is a single event on the analysis stream: per-depth
// progress of a running search, or a backlog queue transition.
type analysisPayload struct {
	Event        string              `json:"event"`
	Depth        *depthProgressDTO   `json:"depth,omitempty"`
	Board        *queueBoardEventDTO `json:"board,omitempty"`
	TotalInQueue int                 `json:"total_in_queue"`
	UpdatedAt    int64               `json:"updated_at_ms"`
}

type depthProgressDTO struct {
	Depth     int   `json:"depth"`
	Column    int   `json:"column"`
	Score     int   `json:"score"`
	Nodes     int64 `json:"nodes"`
	ElapsedMs int64 `json:"elapsed_ms"`
}

type queueBoardEventDTO struct {
	ID                  string `json:"id"`
	CurrentDepth        int    `json:"current_depth"`
	TargetDepth         int    `json:"target_depth"`
	Hits                int    `json:"hits"`
	Analyzing           bool   `json:"analyzing"`
	AnalysisStartedAtMs int64  `json:"analysis_started_at_ms"`
}

type queueBoardDTO struct {
	ID                  string  `json:"id"`
	Grid                [][]int `json:"grid"`
	CurrentDepth        int     `json:"current_depth"`
	TargetDepth         int     `json:"target_depth"`
	Hits                int     `json:"hits"`
	Analyzing           bool    `json:"analyzing"`
	AnalysisStartedAtMs int64   `json:"analysis_started_at_ms"`
}

type queueResponse struct {
	Queue        []queueBoardDTO `json:"queue"`
	TotalInQueue int             `json:"total_in_queue"`
}

type AnalysisClient struct {
	hub  *AnalysisHub
	conn *websocket.Conn
	send chan []byte
}

type AnalysisHub struct {
	mu        sync.Mutex
	clients   map[*AnalysisClient]struct{}
	broadcast chan analysisPayload
}

func NewAnalysisHub() *AnalysisHub {
	return &AnalysisHub{
		clients:   make(map[*AnalysisClient]struct{}),
		broadcast: make(chan analysisPayload, 64),
	}
}

func (h *AnalysisHub) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case payload := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				client.sendJSON(wsMessage{Type: "analysis", Payload: mustMarshal(payload)})
			}
			h.mu.Unlock()
		}
	}
}

// Publish never blocks; a full broadcast buffer drops the event.
func (h *AnalysisHub) Publish(payload analysisPayload) {
	select {
	case h.broadcast <- payload:
	default:
	}
}

func (h *AnalysisHub) PublishDepth(progress DepthProgress) {
	h.Publish(analysisPayload{
		Event: "depth_completed",
		Depth: &depthProgressDTO{
			Depth:     progress.Depth,
			Column:    progress.Column,
			Score:     progress.Score,
			Nodes:     progress.Nodes,
			ElapsedMs: progress.Elapsed.Milliseconds(),
		},
		TotalInQueue: searchBacklogManager.TotalQueue(),
		UpdatedAt:    time.Now().UnixMilli(),
	})
}

func (h *AnalysisHub) Register(c *AnalysisClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *AnalysisHub) Unregister(c *AnalysisClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *AnalysisHub) HasClients() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients) > 0
}

func (c *AnalysisClient) sendJSON(msg wsMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func serveAnalysisWS(hub *AnalysisHub, w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &AnalysisClient{hub: hub, conn: conn, send: make(chan []byte, 16)}
	hub.Register(client)

	initial := analysisPayload{
		Event:        "snapshot",
		TotalInQueue: searchBacklogManager.TotalQueue(),
		UpdatedAt:    time.Now().UnixMilli(),
	}
	client.sendJSON(wsMessage{Type: "analysis", Payload: mustMarshal(initial)})

	go func() {
		defer conn.Close()
		if err := writeWSWithHeartbeat(conn, client.send); err != nil {
			return
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			hub.Unregister(client)
			return
		}
	}
}

func sortQueueBoards(entries []queueBoardEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return compareQueuePriority(entries[i], entries[j]) < 0
	})
}

// compareQueuePriority ranks backlog boards: most requested first, then
// the fullest boards (cheapest to finish), then the most depth left to
// gain, then arrival order.
func compareQueuePriority(a, b queueBoardEntry) int {
	if a.Hits != b.Hits {
		if a.Hits > b.Hits {
			return -1
		}
		return 1
	}
	if a.Plies != b.Plies {
		if a.Plies > b.Plies {
			return -1
		}
		return 1
	}
	remainingA := queueRemainingDepth(a)
	remainingB := queueRemainingDepth(b)
	if remainingA != remainingB {
		if remainingA > remainingB {
			return -1
		}
		return 1
	}
	if !a.Created.Equal(b.Created) {
		if a.Created.Before(b.Created) {
			return -1
		}
		return 1
	}
	if a.Key < b.Key {
		return -1
	}
	if a.Key > b.Key {
		return 1
	}
	return 0
}

func queueRemainingDepth(entry queueBoardEntry) int {
	remaining := entry.TargetDepth - entry.CurrentDepth
	if remaining < 0 {
		return 0
	}
	return remaining
}

func queueTopBoardsLimit() int {
	limit := GetConfig().AiAnalysisTopBoards
	if limit <= 0 {
		return 10
	}
	return limit
}
