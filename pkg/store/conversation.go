package store

import "time"

// Turn is a single entry in the bounded conversation log.
type Turn struct {
	Role       string    `json:"role"` // "user" | "assistant"
	Content    string    `json:"content"`
	TokensUsed int       `json:"tokens_used,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// PoolEntry is one document currently "in play" for a conversation.
// Relevance decays every round the document is not cited and is reset
// when it is cited again.
type PoolEntry struct {
	DocumentID     string   `json:"document_id"`
	Filename       string   `json:"filename"`
	Summary        string   `json:"summary"`
	KeyConcepts    []string `json:"key_concepts,omitempty"`
	Relevance      float64  `json:"relevance"`
	AccessCount    int      `json:"access_count"`
	FirstSeenRound int      `json:"first_seen_round"`
	LastSeenRound  int      `json:"last_seen_round"`
}

// Classification is the classifier verdict attached to a question.
// Immutable once produced.
type Classification struct {
	Intent                string   `json:"intent"`
	Confidence            float64  `json:"confidence"`
	SuggestedStrategy     string   `json:"suggested_strategy"`
	RequiresDocuments     bool     `json:"requires_documents"`
	RequiresContext       bool     `json:"requires_context"`
	EstimatedCost         int      `json:"estimated_cost"` // expected external API calls
	TargetDocumentIDs     []string `json:"target_document_ids,omitempty"`
	ClarificationQuestion string   `json:"clarification_question,omitempty"`
	Reasoning             string   `json:"reasoning,omitempty"`
}

// WorkflowRecord is the durable position of a conversation inside the
// question pipeline. It is everything needed to resume a suspended
// question after a restart: the step, the pending token and the
// classification that was already paid for.
type WorkflowRecord struct {
	CurrentStep     string          `json:"current_step"`
	PendingApproval string          `json:"pending_approval,omitempty"` // approval kind the caller must echo
	PendingQuery    string          `json:"pending_query,omitempty"`
	PendingPrompt   string          `json:"pending_prompt,omitempty"` // clarification text shown to the caller
	Classification  *Classification `json:"classification,omitempty"`
	StrategyUsed    string          `json:"strategy_used,omitempty"`
	APICallsSpent   int             `json:"api_calls_spent"`
	// PendingEvidence survives a synthesizer failure so a retry can
	// answer without re-running retrieval.
	PendingEvidence []FusedResult `json:"pending_evidence,omitempty"`
}

// Conversation is the per-conversation runtime state: bounded turn log,
// decaying document pool and the workflow record. Cached in memory per
// instance and persisted as the conversation's context snapshot.
type Conversation struct {
	ID       string         `json:"id"`
	UserID   string         `json:"user_id"`
	Round    int            `json:"round"` // completed turns, drives decay and recency
	Turns    []Turn         `json:"turns"`
	Pool     []PoolEntry    `json:"pool"`
	Workflow WorkflowRecord `json:"workflow"`
}

// SearchCandidate is one hit from a single index pass.
type SearchCandidate struct {
	DocumentID string  `json:"document_id"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
	OriginPass string  `json:"origin_pass"` // VectorTypeSummary | VectorTypeChunk
	LineStart  int     `json:"line_start,omitempty"`
	LineEnd    int     `json:"line_end,omitempty"`
}

// FusedResult is a candidate after fusion across passes. Score is the
// fused score (cosine similarity for single-pass strategies, synthetic
// RRF score for rrf_fusion) and Passes records which passes contributed.
type FusedResult struct {
	DocumentID string   `json:"document_id"`
	Score      float64  `json:"score"`
	Text       string   `json:"text"`
	Passes     []string `json:"passes"`
	LineStart  int      `json:"line_start,omitempty"`
	LineEnd    int      `json:"line_end,omitempty"`
}

const (
	VectorTypeSummary = "summary"
	VectorTypeChunk   = "chunk"
)
