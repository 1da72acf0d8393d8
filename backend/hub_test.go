package main

import (
	"testing"
	"time"
)

func TestQueuePriorityOrdering(t *testing.T) {
	now := time.Now()
	hot := queueBoardEntry{Key: 1, Hits: 5, Plies: 4, TargetDepth: 38, Created: now}
	cold := queueBoardEntry{Key: 2, Hits: 1, Plies: 4, TargetDepth: 38, Created: now}
	if compareQueuePriority(hot, cold) >= 0 {
		t.Fatal("more requested boards rank first")
	}

	full := queueBoardEntry{Key: 3, Hits: 1, Plies: 30, TargetDepth: 12, Created: now}
	early := queueBoardEntry{Key: 4, Hits: 1, Plies: 4, TargetDepth: 38, Created: now}
	if compareQueuePriority(full, early) >= 0 {
		t.Fatal("fuller boards rank first at equal hits")
	}

	older := queueBoardEntry{Key: 5, Hits: 1, Plies: 4, TargetDepth: 38, Created: now.Add(-time.Minute)}
	newer := queueBoardEntry{Key: 6, Hits: 1, Plies: 4, TargetDepth: 38, Created: now}
	if compareQueuePriority(older, newer) >= 0 {
		t.Fatal("earlier arrivals rank first when all else ties")
	}
}

func TestSortQueueBoardsIsStableByKey(t *testing.T) {
	now := time.Now()
	entries := []queueBoardEntry{
		{Key: 9, Hits: 1, Plies: 2, TargetDepth: 40, Created: now},
		{Key: 4, Hits: 1, Plies: 2, TargetDepth: 40, Created: now},
		{Key: 7, Hits: 3, Plies: 2, TargetDepth: 40, Created: now},
	}
	sortQueueBoards(entries)
	if entries[0].Key != 7 {
		t.Fatalf("expected the most requested board first, got key %d", entries[0].Key)
	}
	if entries[1].Key != 4 || entries[2].Key != 9 {
		t.Fatalf("ties should fall back to key order, got %d then %d", entries[1].Key, entries[2].Key)
	}
}

func TestQueueRemainingDepthNeverNegative(t *testing.T) {
	entry := queueBoardEntry{CurrentDepth: 20, TargetDepth: 12}
	if got := queueRemainingDepth(entry); got != 0 {
		t.Fatalf("expected 0 remaining, got %d", got)
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	hub := NewAnalysisHub()
	// Nobody is draining the broadcast channel; flooding it must not hang.
	for i := 0; i < 1000; i++ {
		hub.Publish(analysisPayload{Event: "board_hit"})
	}
}

func TestPublishDepthDeliversToClients(t *testing.T) {
	hub := NewAnalysisHub()
	done := make(chan struct{})
	defer close(done)
	go hub.Run(done)

	client := &AnalysisClient{hub: hub, send: make(chan []byte, 4)}
	hub.Register(client)
	defer hub.Unregister(client)

	hub.PublishDepth(DepthProgress{Depth: 3, Column: 3, Score: 12})
	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Fatal("empty broadcast message")
		}
	case <-time.After(time.Second):
		t.Fatal("broadcast never reached the client")
	}
}
