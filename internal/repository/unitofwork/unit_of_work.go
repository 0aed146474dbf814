package unitofwork

import (
	"context"

	"ai-docqa-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	UserRepository() contract.UserRepository
	DocumentRepository() contract.DocumentRepository
	DocumentEmbeddingRepository() contract.DocumentEmbeddingRepository
	ConversationRepository() contract.ConversationRepository
	ConversationTurnRepository() contract.ConversationTurnRepository
	TurnCitationRepository() contract.TurnCitationRepository
}
