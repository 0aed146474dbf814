package dto

import (
	"github.com/google/uuid"

	"ai-docqa-be/pkg/store"
)

type AskRequest struct {
	Message        string      `json:"message" validate:"required_without=Action"`
	ConversationId *uuid.UUID  `json:"conversation_id"`
	DocumentIds    []uuid.UUID `json:"document_ids"`
	// Action resumes a suspended question: the approval kind the server
	// asked the client to echo.
	Action string `json:"action" validate:"omitempty,oneof=search analysis detail"`
}

type ClassificationResponse struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Strategy   string  `json:"strategy"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

type WorkflowStateResponse struct {
	CurrentStep     string `json:"current_step"`
	StrategyUsed    string `json:"strategy_used,omitempty"`
	ApiCallsSpent   int    `json:"api_calls_spent"`
	PendingApproval string `json:"pending_approval,omitempty"`
	PendingPrompt   string `json:"pending_prompt,omitempty"`
}

type EvidenceResponse struct {
	DocumentId string   `json:"document_id"`
	Score      float64  `json:"score"`
	Excerpt    string   `json:"excerpt"`
	Passes     []string `json:"passes"`
	LineStart  int      `json:"line_start,omitempty"`
	LineEnd    int      `json:"line_end,omitempty"`
}

type AskResponse struct {
	ConversationId       uuid.UUID               `json:"conversation_id"`
	Answer               string                  `json:"answer,omitempty"`
	PendingApproval      string                  `json:"pending_approval,omitempty"`
	PendingClarification string                  `json:"pending_clarification,omitempty"`
	Classification       *ClassificationResponse `json:"classification,omitempty"`
	WorkflowState        WorkflowStateResponse   `json:"workflow_state"`
	Evidence             []EvidenceResponse      `json:"evidence,omitempty"`
}

func NewClassificationResponse(c *store.Classification) *ClassificationResponse {
	if c == nil {
		return nil
	}
	return &ClassificationResponse{
		Intent:     c.Intent,
		Confidence: c.Confidence,
		Strategy:   c.SuggestedStrategy,
		Reasoning:  c.Reasoning,
	}
}

func NewWorkflowStateResponse(record store.WorkflowRecord) WorkflowStateResponse {
	return WorkflowStateResponse{
		CurrentStep:     record.CurrentStep,
		StrategyUsed:    record.StrategyUsed,
		ApiCallsSpent:   record.APICallsSpent,
		PendingApproval: record.PendingApproval,
		PendingPrompt:   record.PendingPrompt,
	}
}

func NewEvidenceResponses(results []store.FusedResult) []EvidenceResponse {
	if len(results) == 0 {
		return nil
	}
	out := make([]EvidenceResponse, 0, len(results))
	for _, r := range results {
		out = append(out, EvidenceResponse{
			DocumentId: r.DocumentID,
			Score:      r.Score,
			Excerpt:    r.Text,
			Passes:     r.Passes,
			LineStart:  r.LineStart,
			LineEnd:    r.LineEnd,
		})
	}
	return out
}
