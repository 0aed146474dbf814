// FILE: internal/service/conversation_service.go
package service

import (
	"context"

	"ai-docqa-be/internal/dto"
	"ai-docqa-be/internal/pkg/serverutils"
	"ai-docqa-be/internal/repository/memory"
	"ai-docqa-be/internal/repository/specification"
	"ai-docqa-be/internal/repository/unitofwork"
	"ai-docqa-be/pkg/store"

	"github.com/google/uuid"
)

type IConversationService interface {
	List(ctx context.Context, userId uuid.UUID) ([]dto.ListConversationItem, error)
	Show(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID) (*dto.ShowConversationResponse, error)
	Delete(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID) error
}

type conversationService struct {
	uowFactory unitofwork.RepositoryFactory
	stateRepo  *memory.ConversationStateRepository
}

func NewConversationService(uowFactory unitofwork.RepositoryFactory, stateRepo *memory.ConversationStateRepository) IConversationService {
	return &conversationService{
		uowFactory: uowFactory,
		stateRepo:  stateRepo,
	}
}

func (s *conversationService) List(ctx context.Context, userId uuid.UUID) ([]dto.ListConversationItem, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	conversations, err := uow.ConversationRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "updated_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	items := make([]dto.ListConversationItem, 0, len(conversations))
	for _, conversation := range conversations {
		items = append(items, dto.ListConversationItem{
			Id:        conversation.Id,
			Round:     conversation.Round,
			CreatedAt: conversation.CreatedAt,
			UpdatedAt: conversation.UpdatedAt,
		})
	}
	return items, nil
}

func (s *conversationService) Show(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID) (*dto.ShowConversationResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	record, err := uow.ConversationRepository().FindOne(ctx,
		specification.ByID{ID: conversationId},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, serverutils.NewNotFoundError("conversation not found")
	}

	// Prefer the in-memory runtime state; it may be ahead of the last
	// persisted snapshot while a question is suspended.
	snapshot := record.Context
	if cached, found := s.stateRepo.Get(record.Id.String()); found {
		snapshot = cached
	}
	if snapshot == nil {
		snapshot = &store.Conversation{ID: record.Id.String(), UserID: userId.String(), Round: record.Round}
	}

	turns := make([]dto.TurnResponse, 0, len(snapshot.Turns))
	for _, turn := range snapshot.Turns {
		turns = append(turns, dto.TurnResponse{
			Role:       turn.Role,
			Content:    turn.Content,
			TokensUsed: turn.TokensUsed,
			CreatedAt:  turn.CreatedAt,
		})
	}

	pool := make([]dto.PoolEntryResponse, 0, len(snapshot.Pool))
	for _, entry := range snapshot.Pool {
		pool = append(pool, dto.PoolEntryResponse{
			DocumentId:    entry.DocumentID,
			Filename:      entry.Filename,
			Summary:       entry.Summary,
			KeyConcepts:   entry.KeyConcepts,
			Relevance:     entry.Relevance,
			AccessCount:   entry.AccessCount,
			LastSeenRound: entry.LastSeenRound,
		})
	}

	return &dto.ShowConversationResponse{
		Id:            record.Id,
		Round:         snapshot.Round,
		Turns:         turns,
		Pool:          pool,
		WorkflowState: dto.NewWorkflowStateResponse(snapshot.Workflow),
	}, nil
}

func (s *conversationService) Delete(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	record, err := uow.ConversationRepository().FindOne(ctx,
		specification.ByID{ID: conversationId},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return err
	}
	if record == nil {
		return serverutils.NewNotFoundError("conversation not found")
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.ConversationTurnRepository().DeleteByConversationId(ctx, record.Id); err != nil {
		return err
	}
	if err := uow.ConversationRepository().Delete(ctx, record.Id); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	s.stateRepo.Delete(record.Id.String())
	return nil
}
