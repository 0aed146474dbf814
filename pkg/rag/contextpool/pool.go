package contextpool

import (
	"log"
	"sort"
	"time"

	"ai-docqa-be/pkg/store"
)

type Config struct {
	DecayRate     float64 // relevance lost per uncited round
	MinRelevance  float64 // purge floor
	MaxIdleRounds int     // rounds uncited before purge eligibility
	MaxPool       int     // hard pool bound
	MaxTurns      int     // hard turn-log bound
	CitedBoost    float64 // relevance floor applied to cited entries
}

func DefaultConfig() Config {
	return Config{
		DecayRate:     0.1,
		MinRelevance:  0.35,
		MaxIdleRounds: 5,
		MaxPool:       20,
		MaxTurns:      50,
		CitedBoost:    0.9,
	}
}

// CitedDocument is a document surfaced by the current turn's retrieval,
// carrying the metadata needed to seed a pool entry.
type CitedDocument struct {
	DocumentID  string
	Filename    string
	Summary     string
	KeyConcepts []string
	Score       float64
}

// Manager owns the per-conversation document pool and turn log. All
// methods mutate the passed Conversation in place; the caller owns
// persistence and serializes turns on the same conversation.
type Manager struct {
	config Config
	logger *log.Logger
}

func NewManager(config Config, logger *log.Logger) *Manager {
	if config.DecayRate <= 0 {
		config.DecayRate = 0.1
	}
	if config.MinRelevance <= 0 {
		config.MinRelevance = 0.35
	}
	if config.MaxIdleRounds <= 0 {
		config.MaxIdleRounds = 5
	}
	if config.MaxPool <= 0 {
		config.MaxPool = 20
	}
	if config.MaxTurns <= 0 {
		config.MaxTurns = 50
	}
	if config.CitedBoost <= 0 {
		config.CitedBoost = 0.9
	}
	return &Manager{config: config, logger: logger}
}

// UpdatePool runs the once-per-completed-turn maintenance cycle:
// boost cited entries, decay the rest, purge stale low-relevance
// entries, insert newly surfaced documents, and evict down to the
// pool bound. Documents cited this round are never evicted by this
// round's update.
func (m *Manager) UpdatePool(conversation *store.Conversation, cited []CitedDocument) {
	conversation.Round++
	round := conversation.Round

	citedByID := make(map[string]CitedDocument, len(cited))
	for _, doc := range cited {
		existing, ok := citedByID[doc.DocumentID]
		if !ok || doc.Score > existing.Score {
			citedByID[doc.DocumentID] = doc
		}
	}

	kept := conversation.Pool[:0]
	for _, entry := range conversation.Pool {
		if doc, ok := citedByID[entry.DocumentID]; ok {
			if entry.Relevance < m.config.CitedBoost {
				entry.Relevance = m.config.CitedBoost
			}
			if doc.Score > entry.Relevance {
				entry.Relevance = clamp01(doc.Score)
			}
			entry.AccessCount++
			entry.LastSeenRound = round
			delete(citedByID, entry.DocumentID)
			kept = append(kept, entry)
			continue
		}

		entry.Relevance -= m.config.DecayRate
		if entry.Relevance < 0 {
			entry.Relevance = 0
		}

		idle := round - entry.LastSeenRound
		if entry.Relevance < m.config.MinRelevance && idle >= m.config.MaxIdleRounds {
			m.logger.Printf("[POOL] Purging %s (relevance %.2f, idle %d rounds)", entry.DocumentID, entry.Relevance, idle)
			continue
		}
		kept = append(kept, entry)
	}
	conversation.Pool = kept

	// remaining cited documents are new to the pool
	for _, doc := range citedByID {
		conversation.Pool = append(conversation.Pool, store.PoolEntry{
			DocumentID:     doc.DocumentID,
			Filename:       doc.Filename,
			Summary:        doc.Summary,
			KeyConcepts:    doc.KeyConcepts,
			Relevance:      clamp01(doc.Score),
			AccessCount:    1,
			FirstSeenRound: round,
			LastSeenRound:  round,
		})
	}

	m.evictOverflow(conversation, round)
	m.sortByPriority(conversation.Pool, round)
}

// evictOverflow drops the lowest-priority entries until the pool fits,
// skipping anything cited in the current round.
func (m *Manager) evictOverflow(conversation *store.Conversation, round int) {
	if len(conversation.Pool) <= m.config.MaxPool {
		return
	}

	m.sortByPriority(conversation.Pool, round)

	kept := make([]store.PoolEntry, 0, m.config.MaxPool)
	evictable := make([]int, 0)
	for i, entry := range conversation.Pool {
		if entry.LastSeenRound == round {
			kept = append(kept, entry)
		} else {
			evictable = append(evictable, i)
		}
	}

	// fill the remaining slots with the highest-priority uncited entries
	for _, idx := range evictable {
		if len(kept) >= m.config.MaxPool {
			entry := conversation.Pool[idx]
			m.logger.Printf("[POOL] Evicting %s (priority %.3f)", entry.DocumentID, m.priority(entry, round))
			continue
		}
		kept = append(kept, conversation.Pool[idx])
	}
	// only reachable when cited entries alone exceed the bound
	if len(kept) > m.config.MaxPool {
		kept = kept[:m.config.MaxPool]
	}
	conversation.Pool = kept
	m.sortByPriority(conversation.Pool, round)
}

// priority blends how relevant an entry still is with how recently it
// was cited.
func (m *Manager) priority(entry store.PoolEntry, round int) float64 {
	recency := 1.0 / float64(1+round-entry.LastSeenRound)
	return 0.7*entry.Relevance + 0.3*recency
}

func (m *Manager) sortByPriority(pool []store.PoolEntry, round int) {
	sort.SliceStable(pool, func(i, j int) bool {
		pi, pj := m.priority(pool[i], round), m.priority(pool[j], round)
		if pi != pj {
			return pi > pj
		}
		return pool[i].DocumentID < pool[j].DocumentID
	})
}

// AppendTurn appends to the bounded turn log, evicting the oldest
// turns first.
func (m *Manager) AppendTurn(conversation *store.Conversation, role, content string, tokensUsed int) {
	conversation.Turns = append(conversation.Turns, store.Turn{
		Role:       role,
		Content:    content,
		TokensUsed: tokensUsed,
		CreatedAt:  time.Now().UTC(),
	})
	if overflow := len(conversation.Turns) - m.config.MaxTurns; overflow > 0 {
		conversation.Turns = append([]store.Turn(nil), conversation.Turns[overflow:]...)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
