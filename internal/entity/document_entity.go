package entity

import (
	"time"

	"github.com/google/uuid"
)

type Document struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Filename    string
	Title       string
	Content     string
	Summary     string
	KeyConcepts []string
	UserId      uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt   time.Time
	UpdatedAt   *time.Time
	DeletedAt   *time.Time
	IsDeleted   bool
}

// DocumentEmbedding is one vector for a document: a single summary
// vector or one of its chunk vectors. Chunk embeddings keep the source
// line range so answers can point back into the document.
type DocumentEmbedding struct {
	Id         uuid.UUID `gorm:"type:uuid;primaryKey"`
	DocumentId uuid.UUID `gorm:"type:uuid;index"`
	VectorType string    // store.VectorTypeSummary | store.VectorTypeChunk
	ChunkIndex int
	Content    string
	Embedding  []float32
	LineStart  int
	LineEnd    int
	CreatedAt  time.Time
	DeletedAt  *time.Time
}
