package contract

import (
	"context"

	"ai-docqa-be/internal/entity"
	"ai-docqa-be/internal/repository/specification"

	"github.com/google/uuid"
)

// ScoredDocumentEmbedding wraps DocumentEmbedding with its similarity score
type ScoredDocumentEmbedding struct {
	Embedding  *entity.DocumentEmbedding
	Similarity float64 // 0.0 to 1.0 (1.0 = identical)
}

// VectorSearchParams narrows a similarity search to one owner, one vector
// granularity and optionally a fixed set of documents.
type VectorSearchParams struct {
	UserId      uuid.UUID
	VectorType  string      // store.VectorTypeSummary | store.VectorTypeChunk, empty = both
	DocumentIds []uuid.UUID // empty = no restriction
	Limit       int
	Threshold   float64
}

type DocumentEmbeddingRepository interface {
	Create(ctx context.Context, embedding *entity.DocumentEmbedding) error
	CreateBulk(ctx context.Context, embeddings []*entity.DocumentEmbedding) error
	DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error
	DeleteAllByUserIdUnscoped(ctx context.Context, userId uuid.UUID) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DocumentEmbedding, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// SearchSimilarWithScore returns embeddings with their cosine similarity,
	// score-descending, filtered by params.Threshold.
	SearchSimilarWithScore(ctx context.Context, embedding []float32, params VectorSearchParams) ([]*ScoredDocumentEmbedding, error)
}
