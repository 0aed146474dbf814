package contextpool

import (
	"fmt"
	"io"
	"log"
	"math"
	"testing"

	"ai-docqa-be/pkg/store"
)

func newTestManager() *Manager {
	return NewManager(DefaultConfig(), log.New(io.Discard, "", 0))
}

func poolIDs(pool []store.PoolEntry) []string {
	ids := make([]string, 0, len(pool))
	for _, e := range pool {
		ids = append(ids, e.DocumentID)
	}
	return ids
}

func findEntry(t *testing.T, pool []store.PoolEntry, docID string) store.PoolEntry {
	t.Helper()
	for _, e := range pool {
		if e.DocumentID == docID {
			return e
		}
	}
	t.Fatalf("document %s not in pool %v", docID, poolIDs(pool))
	return store.PoolEntry{}
}

func TestUpdatePoolSeedsNewDocumentsFromScore(t *testing.T) {
	manager := newTestManager()
	conv := &store.Conversation{ID: "c1"}

	manager.UpdatePool(conv, []CitedDocument{
		{DocumentID: "d1", Filename: "lease.pdf", Summary: "Office lease", Score: 0.82},
	})

	if len(conv.Pool) != 1 {
		t.Fatalf("pool size = %d, want 1", len(conv.Pool))
	}
	entry := conv.Pool[0]
	if entry.Relevance != 0.82 {
		t.Errorf("relevance = %v, want seeded from score 0.82", entry.Relevance)
	}
	if entry.AccessCount != 1 || entry.FirstSeenRound != 1 || entry.LastSeenRound != 1 {
		t.Errorf("bookkeeping = %+v, want accessCount=1 firstSeen=lastSeen=1", entry)
	}
}

func TestUpdatePoolBoostsCitedAndDecaysRest(t *testing.T) {
	manager := newTestManager()
	conv := &store.Conversation{ID: "c1"}

	manager.UpdatePool(conv, []CitedDocument{
		{DocumentID: "d1", Score: 0.8},
		{DocumentID: "d2", Score: 0.6},
	})

	manager.UpdatePool(conv, []CitedDocument{{DocumentID: "d1", Score: 0.7}})

	d1 := findEntry(t, conv.Pool, "d1")
	if d1.Relevance < 0.9 {
		t.Errorf("cited d1 relevance = %v, want boosted to >= 0.9", d1.Relevance)
	}
	if d1.AccessCount != 2 || d1.LastSeenRound != 2 {
		t.Errorf("cited d1 bookkeeping = %+v", d1)
	}

	d2 := findEntry(t, conv.Pool, "d2")
	if math.Abs(d2.Relevance-0.5) > 1e-9 {
		t.Errorf("uncited d2 relevance = %v, want 0.6 - 0.1 decay", d2.Relevance)
	}
	if d2.LastSeenRound != 1 {
		t.Errorf("uncited d2 lastSeenRound = %d, want unchanged 1", d2.LastSeenRound)
	}
}

func TestDecayMonotonicityAndFloor(t *testing.T) {
	manager := newTestManager()
	conv := &store.Conversation{
		Round: 0,
		Pool: []store.PoolEntry{
			{DocumentID: "d1", Relevance: 0.42, LastSeenRound: 0},
		},
	}

	prev := conv.Pool[0].Relevance
	for round := 0; round < 3; round++ {
		// keep d1 alive past the idle purge by citing a different doc
		manager.UpdatePool(conv, []CitedDocument{{DocumentID: "other", Score: 0.9}})
		d1 := findEntry(t, conv.Pool, "d1")
		want := math.Max(0, prev-0.1)
		if math.Abs(d1.Relevance-want) > 1e-9 {
			t.Fatalf("round %d: relevance = %v, want %v", conv.Round, d1.Relevance, want)
		}
		prev = d1.Relevance
	}
}

func TestUpdatePoolPurgesStaleEntries(t *testing.T) {
	manager := newTestManager()
	conv := &store.Conversation{
		Round: 6,
		Pool: []store.PoolEntry{
			// after decay: 0.30 < MinRelevance, idle 7-1=6 >= 5
			{DocumentID: "stale", Relevance: 0.40, LastSeenRound: 1},
			// after decay: 0.30 < MinRelevance but idle 7-5=2 < 5
			{DocumentID: "recent", Relevance: 0.40, LastSeenRound: 5},
		},
	}

	manager.UpdatePool(conv, nil)

	if len(conv.Pool) != 1 || conv.Pool[0].DocumentID != "recent" {
		t.Errorf("pool = %v, want stale purged and recent kept", poolIDs(conv.Pool))
	}
}

func TestUpdatePoolEvictsLowestPriorityAtBound(t *testing.T) {
	manager := newTestManager()
	conv := &store.Conversation{Round: 9}
	for i := 0; i < DefaultConfig().MaxPool; i++ {
		conv.Pool = append(conv.Pool, store.PoolEntry{
			DocumentID:    fmt.Sprintf("old-%02d", i),
			Relevance:     0.5 + float64(i)*0.01,
			LastSeenRound: 9,
		})
	}

	manager.UpdatePool(conv, []CitedDocument{{DocumentID: "fresh", Score: 0.95}})

	if len(conv.Pool) != DefaultConfig().MaxPool {
		t.Fatalf("pool size = %d, want bound %d", len(conv.Pool), DefaultConfig().MaxPool)
	}
	findEntry(t, conv.Pool, "fresh")
	// old-00 had the lowest relevance hence lowest priority
	for _, e := range conv.Pool {
		if e.DocumentID == "old-00" {
			t.Error("lowest-priority entry old-00 should have been evicted")
		}
	}
}

func TestUpdatePoolNeverEvictsCurrentTurnCitations(t *testing.T) {
	manager := newTestManager()
	conv := &store.Conversation{Round: 3}
	for i := 0; i < DefaultConfig().MaxPool; i++ {
		conv.Pool = append(conv.Pool, store.PoolEntry{
			DocumentID:    fmt.Sprintf("d-%02d", i),
			Relevance:     0.99,
			LastSeenRound: 3,
		})
	}

	// cite the entry that would otherwise tie at the bottom plus a new doc
	manager.UpdatePool(conv, []CitedDocument{
		{DocumentID: "d-00", Score: 0.10},
		{DocumentID: "brand-new", Score: 0.05},
	})

	if len(conv.Pool) != DefaultConfig().MaxPool {
		t.Fatalf("pool size = %d, want bound %d", len(conv.Pool), DefaultConfig().MaxPool)
	}
	findEntry(t, conv.Pool, "d-00")
	findEntry(t, conv.Pool, "brand-new")
}

func TestUpdatePoolDeduplicatesCitationsKeepingBestScore(t *testing.T) {
	manager := newTestManager()
	conv := &store.Conversation{}

	manager.UpdatePool(conv, []CitedDocument{
		{DocumentID: "d1", Score: 0.4},
		{DocumentID: "d1", Score: 0.9},
	})

	if len(conv.Pool) != 1 {
		t.Fatalf("pool size = %d, want 1", len(conv.Pool))
	}
	if conv.Pool[0].Relevance != 0.9 {
		t.Errorf("relevance = %v, want highest-scoring representative 0.9", conv.Pool[0].Relevance)
	}
	if conv.Pool[0].AccessCount != 1 {
		t.Errorf("accessCount = %d, want 1 for a single turn", conv.Pool[0].AccessCount)
	}
}

func TestPoolOrderedByPriority(t *testing.T) {
	manager := newTestManager()
	conv := &store.Conversation{
		Round: 4,
		Pool: []store.PoolEntry{
			{DocumentID: "low", Relevance: 0.5, LastSeenRound: 1},
			{DocumentID: "high", Relevance: 0.95, LastSeenRound: 4},
		},
	}

	manager.UpdatePool(conv, []CitedDocument{{DocumentID: "high", Score: 0.9}})

	if conv.Pool[0].DocumentID != "high" {
		t.Errorf("pool order = %v, want priority-descending", poolIDs(conv.Pool))
	}
}

func TestAppendTurnBound(t *testing.T) {
	manager := newTestManager()
	conv := &store.Conversation{}
	maxTurns := DefaultConfig().MaxTurns

	for i := 0; i < maxTurns+7; i++ {
		manager.AppendTurn(conv, store.RoleUser, fmt.Sprintf("turn %d", i), 0)
	}

	if len(conv.Turns) != maxTurns {
		t.Fatalf("turn log length = %d, want %d", len(conv.Turns), maxTurns)
	}
	if conv.Turns[0].Content != "turn 7" {
		t.Errorf("oldest kept turn = %q, want %q", conv.Turns[0].Content, "turn 7")
	}
	if conv.Turns[maxTurns-1].Content != fmt.Sprintf("turn %d", maxTurns+6) {
		t.Errorf("newest turn = %q, want the last appended", conv.Turns[maxTurns-1].Content)
	}
}
