package mapper

import (
	"encoding/json"
	"time"

	"ai-docqa-be/internal/entity"
	"ai-docqa-be/internal/model"
	"ai-docqa-be/pkg/store"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ConversationMapper struct{}

func NewConversationMapper() *ConversationMapper {
	return &ConversationMapper{}
}

func (m *ConversationMapper) ConversationToEntity(c *model.Conversation) *entity.Conversation {
	if c == nil {
		return nil
	}

	var deletedAt *time.Time
	if c.DeletedAt.Valid {
		t := c.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		updatedAt = &t
	}

	var ctxState *store.Conversation
	if len(c.Context) > 0 {
		var s store.Conversation
		if err := json.Unmarshal(c.Context, &s); err == nil {
			ctxState = &s
		}
	}

	return &entity.Conversation{
		Id:        c.Id,
		UserId:    c.UserId,
		Title:     c.Title,
		Round:     c.Round,
		Context:   ctxState,
		CreatedAt: c.CreatedAt,
		UpdatedAt: updatedAt,
		DeletedAt: deletedAt,
		IsDeleted: c.DeletedAt.Valid,
	}
}

func (m *ConversationMapper) ConversationToModel(c *entity.Conversation) *model.Conversation {
	if c == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if c.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *c.DeletedAt, Valid: true}
	} else if c.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if c.UpdatedAt != nil {
		updatedAt = *c.UpdatedAt
	}

	var ctxState datatypes.JSON
	if c.Context != nil {
		if raw, err := json.Marshal(c.Context); err == nil {
			ctxState = raw
		}
	}

	return &model.Conversation{
		Id:        c.Id,
		UserId:    c.UserId,
		Title:     c.Title,
		Round:     c.Round,
		Context:   ctxState,
		CreatedAt: c.CreatedAt,
		UpdatedAt: updatedAt,
		DeletedAt: deletedAt,
	}
}

// Turn Mappers

func (m *ConversationMapper) TurnToEntity(t *model.ConversationTurn) *entity.ConversationTurn {
	if t == nil {
		return nil
	}

	var deletedAt *time.Time
	if t.DeletedAt.Valid {
		dt := t.DeletedAt.Time
		deletedAt = &dt
	}

	var updatedAt *time.Time
	if !t.UpdatedAt.IsZero() {
		ut := t.UpdatedAt
		updatedAt = &ut
	}

	return &entity.ConversationTurn{
		Id:             t.Id,
		Content:        t.Content,
		Role:           t.Role,
		TokensUsed:     t.TokensUsed,
		ConversationId: t.ConversationId,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
		IsDeleted:      t.DeletedAt.Valid,
	}
}

func (m *ConversationMapper) TurnToModel(t *entity.ConversationTurn) *model.ConversationTurn {
	if t == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if t.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *t.DeletedAt, Valid: true}
	} else if t.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if t.UpdatedAt != nil {
		updatedAt = *t.UpdatedAt
	}

	return &model.ConversationTurn{
		Id:             t.Id,
		Content:        t.Content,
		Role:           t.Role,
		TokensUsed:     t.TokensUsed,
		ConversationId: t.ConversationId,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
	}
}

func (m *ConversationMapper) CitationToEntity(c *model.TurnCitation) *entity.TurnCitation {
	if c == nil {
		return nil
	}
	return &entity.TurnCitation{
		Id:         c.Id,
		TurnId:     c.TurnId,
		DocumentId: c.DocumentId,
		Score:      c.Score,
		CreatedAt:  c.CreatedAt,
	}
}

func (m *ConversationMapper) CitationToModel(c *entity.TurnCitation) *model.TurnCitation {
	if c == nil {
		return nil
	}
	return &model.TurnCitation{
		Id:         c.Id,
		TurnId:     c.TurnId,
		DocumentId: c.DocumentId,
		Score:      c.Score,
		CreatedAt:  c.CreatedAt,
	}
}
