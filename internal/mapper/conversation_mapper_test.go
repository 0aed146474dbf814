package mapper

import (
	"testing"
	"time"

	"ai-docqa-be/internal/entity"
	"ai-docqa-be/pkg/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestConversationContextSnapshotRoundTrip(t *testing.T) {
	m := NewConversationMapper()

	conversationId := uuid.New()
	userId := uuid.New()
	created := time.Now().Truncate(time.Second)

	snapshot := &store.Conversation{
		ID:     conversationId.String(),
		UserID: userId.String(),
		Round:  3,
		Turns: []store.Turn{
			{Role: store.RoleUser, Content: "what is the notice period?", CreatedAt: created},
			{Role: store.RoleAssistant, Content: "Thirty days, per the lease.", TokensUsed: 8, CreatedAt: created},
		},
		Pool: []store.PoolEntry{
			{DocumentID: "d1", Filename: "lease.pdf", Relevance: 0.9, AccessCount: 2, LastSeenRound: 3},
		},
		Workflow: store.WorkflowRecord{
			CurrentStep:   "COMPLETED",
			StrategyUsed:  "two_stage",
			APICallsSpent: 4,
		},
	}

	ent := &entity.Conversation{
		Id:        conversationId,
		UserId:    userId,
		Round:     3,
		Context:   snapshot,
		CreatedAt: created,
	}

	got := m.ConversationToEntity(m.ConversationToModel(ent))

	assert.Equal(t, conversationId, got.Id)
	assert.Equal(t, 3, got.Round)
	if assert.NotNil(t, got.Context) {
		assert.Len(t, got.Context.Turns, 2)
		assert.Equal(t, "Thirty days, per the lease.", got.Context.Turns[1].Content)
		assert.Equal(t, 0.9, got.Context.Pool[0].Relevance)
		assert.Equal(t, "two_stage", got.Context.Workflow.StrategyUsed)
		assert.Equal(t, 4, got.Context.Workflow.APICallsSpent)
	}
}

func TestConversationToEntityNilAndEmptyContext(t *testing.T) {
	m := NewConversationMapper()

	assert.Nil(t, m.ConversationToEntity(nil))

	ent := m.ConversationToEntity(m.ConversationToModel(&entity.Conversation{Id: uuid.New()}))
	assert.Nil(t, ent.Context)
}
