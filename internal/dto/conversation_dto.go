package dto

import (
	"time"

	"github.com/google/uuid"
)

type ListConversationItem struct {
	Id        uuid.UUID  `json:"id"`
	Round     int        `json:"round"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type TurnResponse struct {
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	TokensUsed int       `json:"tokens_used,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type PoolEntryResponse struct {
	DocumentId    string   `json:"document_id"`
	Filename      string   `json:"filename"`
	Summary       string   `json:"summary"`
	KeyConcepts   []string `json:"key_concepts,omitempty"`
	Relevance     float64  `json:"relevance"`
	AccessCount   int      `json:"access_count"`
	LastSeenRound int      `json:"last_seen_round"`
}

type ShowConversationResponse struct {
	Id            uuid.UUID             `json:"id"`
	Round         int                   `json:"round"`
	Turns         []TurnResponse        `json:"turns"`
	Pool          []PoolEntryResponse   `json:"pool"`
	WorkflowState WorkflowStateResponse `json:"workflow_state"`
}
