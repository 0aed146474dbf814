package entity

import (
	"time"

	"github.com/google/uuid"

	"ai-docqa-be/pkg/store"
)

type Conversation struct {
	Id        uuid.UUID
	UserId    uuid.UUID
	Title     string
	Round     int
	// Context is the durable per-conversation snapshot: document pool
	// and workflow record. The bounded turn log lives in its own table.
	Context   *store.Conversation
	CreatedAt time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time
	IsDeleted bool
}

type ConversationTurn struct {
	Id             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Content        string
	Role           string
	TokensUsed     int
	ConversationId uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt      time.Time
	UpdatedAt      *time.Time
	DeletedAt      *time.Time
	IsDeleted      bool
}

// TurnCitation links an assistant turn to the documents it cited,
// together with the fused score the evidence carried.
type TurnCitation struct {
	Id         uuid.UUID `gorm:"type:uuid;primaryKey"`
	TurnId     uuid.UUID `gorm:"type:uuid;not null;index"`
	DocumentId uuid.UUID `gorm:"type:uuid;not null;index"`
	Score      float64
	CreatedAt  time.Time `gorm:"autoCreateTime"`

	// Relationships
	Turn     *ConversationTurn `gorm:"foreignKey:TurnId;references:Id;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Document *Document         `gorm:"foreignKey:DocumentId;references:Id;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}
