// FILE: internal/service/search_index.go
package service

import (
	"context"

	"ai-docqa-be/internal/repository/contract"
	"ai-docqa-be/internal/repository/specification"
	"ai-docqa-be/internal/repository/unitofwork"
	"ai-docqa-be/pkg/rag/contextpool"
	"ai-docqa-be/pkg/store"

	"github.com/google/uuid"
)

// userSearchIndex scopes the vector index to one owner. A fresh value
// is built per request, so the retrieval engine itself stays
// owner-agnostic.
type userSearchIndex struct {
	uowFactory unitofwork.RepositoryFactory
	userId     uuid.UUID
	threshold  float64
}

func newUserSearchIndex(uowFactory unitofwork.RepositoryFactory, userId uuid.UUID, threshold float64) *userSearchIndex {
	return &userSearchIndex{
		uowFactory: uowFactory,
		userId:     userId,
		threshold:  threshold,
	}
}

func (s *userSearchIndex) Search(ctx context.Context, queryEmbedding []float32, vectorType string, documentIDs []string, limit int) ([]store.SearchCandidate, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	params := contract.VectorSearchParams{
		UserId:      s.userId,
		VectorType:  vectorType,
		DocumentIds: parseDocumentIds(documentIDs),
		Limit:       limit,
		Threshold:   s.threshold,
	}

	scored, err := uow.DocumentEmbeddingRepository().SearchSimilarWithScore(ctx, queryEmbedding, params)
	if err != nil {
		return nil, err
	}

	candidates := make([]store.SearchCandidate, 0, len(scored))
	for _, hit := range scored {
		candidates = append(candidates, store.SearchCandidate{
			DocumentID: hit.Embedding.DocumentId.String(),
			Score:      hit.Similarity,
			Text:       hit.Embedding.Content,
			OriginPass: hit.Embedding.VectorType,
			LineStart:  hit.Embedding.LineStart,
			LineEnd:    hit.Embedding.LineEnd,
		})
	}
	return candidates, nil
}

// userDocumentResolver loads pool-seeding metadata for cited documents,
// restricted to the owner.
type userDocumentResolver struct {
	uowFactory unitofwork.RepositoryFactory
	userId     uuid.UUID
}

func newUserDocumentResolver(uowFactory unitofwork.RepositoryFactory, userId uuid.UUID) *userDocumentResolver {
	return &userDocumentResolver{uowFactory: uowFactory, userId: userId}
}

func (r *userDocumentResolver) Resolve(ctx context.Context, userID string, documentIDs []string) (map[string]contextpool.CitedDocument, error) {
	ids := parseDocumentIds(documentIDs)
	if len(ids) == 0 {
		return nil, nil
	}

	uow := r.uowFactory.NewUnitOfWork(ctx)
	documents, err := uow.DocumentRepository().FindAll(ctx,
		specification.ByIDs{IDs: ids},
		specification.UserOwnedBy{UserID: r.userId},
	)
	if err != nil {
		return nil, err
	}

	metadata := make(map[string]contextpool.CitedDocument, len(documents))
	for _, document := range documents {
		metadata[document.Id.String()] = contextpool.CitedDocument{
			DocumentID:  document.Id.String(),
			Filename:    document.Filename,
			Summary:     document.Summary,
			KeyConcepts: document.KeyConcepts,
		}
	}
	return metadata, nil
}

func parseDocumentIds(documentIDs []string) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(documentIDs))
	for _, raw := range documentIDs {
		if id, err := uuid.Parse(raw); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
