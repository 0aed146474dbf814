package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateDocumentRequest struct {
	Filename    string   `json:"filename" validate:"required,max=255"`
	Content     string   `json:"content" validate:"required"`
	Summary     string   `json:"summary"`
	KeyConcepts []string `json:"key_concepts"`
}

type CreateDocumentResponse struct {
	Id uuid.UUID `json:"id"`
}

type UpdateDocumentRequest struct {
	Id          uuid.UUID `json:"-"`
	Filename    string    `json:"filename" validate:"omitempty,max=255"`
	Content     string    `json:"content"`
	Summary     string    `json:"summary"`
	KeyConcepts []string  `json:"key_concepts"`
}

type UpdateDocumentResponse struct {
	Id uuid.UUID `json:"id"`
}

type ShowDocumentResponse struct {
	Id          uuid.UUID  `json:"id"`
	Filename    string     `json:"filename"`
	Content     string     `json:"content"`
	Summary     string     `json:"summary"`
	KeyConcepts []string   `json:"key_concepts"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

type ListDocumentItem struct {
	Id        uuid.UUID `json:"id"`
	Filename  string    `json:"filename"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// PublishEmbedDocumentMessage is the embedding job payload handed to
// the in-process consumer.
type PublishEmbedDocumentMessage struct {
	DocumentId uuid.UUID `json:"document_id"`
}
