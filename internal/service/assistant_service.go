// FILE: internal/service/assistant_service.go
package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"ai-docqa-be/internal/config"
	"ai-docqa-be/internal/dto"
	"ai-docqa-be/internal/entity"
	"ai-docqa-be/internal/pkg/serverutils"
	"ai-docqa-be/internal/repository/memory"
	"ai-docqa-be/internal/repository/specification"
	"ai-docqa-be/internal/repository/unitofwork"
	"ai-docqa-be/internal/websocket"
	"ai-docqa-be/pkg/embedding"
	"ai-docqa-be/pkg/events"
	pktNats "ai-docqa-be/pkg/nats"
	"ai-docqa-be/pkg/rag/contextpool"
	"ai-docqa-be/pkg/rag/retrieval"
	"ai-docqa-be/pkg/rag/workflow"
	"ai-docqa-be/pkg/store"

	"github.com/google/uuid"
)

type IAssistantService interface {
	Ask(ctx context.Context, userId uuid.UUID, req *dto.AskRequest) (*dto.AskResponse, error)
}

type assistantService struct {
	uowFactory        unitofwork.RepositoryFactory
	stateRepo         *memory.ConversationStateRepository
	classifier        workflow.Classifier
	responder         workflow.Responder
	answerCache       workflow.AnswerCache
	poolManager       *contextpool.Manager
	embeddingProvider embedding.EmbeddingProvider
	eventPublisher    *pktNats.Publisher
	hub               *websocket.Hub
	retrievalConfig   retrieval.Config
	policy            workflow.ApprovalPolicy
	ragLogger         *log.Logger
}

func NewAssistantService(
	uowFactory unitofwork.RepositoryFactory,
	stateRepo *memory.ConversationStateRepository,
	classifier workflow.Classifier,
	responder workflow.Responder,
	answerCache workflow.AnswerCache,
	embeddingProvider embedding.EmbeddingProvider,
	eventPublisher *pktNats.Publisher,
	hub *websocket.Hub,
	cfg *config.Config,
	ragLogger *log.Logger,
) IAssistantService {
	poolManager := contextpool.NewManager(contextpool.Config{
		DecayRate:     cfg.Pool.DecayRate,
		MinRelevance:  cfg.Pool.MinRelevance,
		MaxIdleRounds: cfg.Pool.MaxIdleRounds,
		MaxPool:       cfg.Pool.MaxPool,
		MaxTurns:      cfg.Pool.MaxTurns,
	}, ragLogger)

	return &assistantService{
		uowFactory:        uowFactory,
		stateRepo:         stateRepo,
		classifier:        classifier,
		responder:         responder,
		answerCache:       answerCache,
		poolManager:       poolManager,
		embeddingProvider: embeddingProvider,
		eventPublisher:    eventPublisher,
		hub:               hub,
		retrievalConfig: retrieval.Config{
			Stage1K:       cfg.Retrieval.Stage1K,
			TopK:          cfg.Retrieval.TopK,
			Threshold:     cfg.Retrieval.Threshold,
			RRFK:          cfg.Retrieval.RRFK,
			SummaryWeight: cfg.Retrieval.SummaryWeight,
			ChunkWeight:   cfg.Retrieval.ChunkWeight,
		},
		policy: workflow.ApprovalPolicy{
			AutoApproveAll:            cfg.Workflow.AutoApproveAll,
			AutoApproveHighConfidence: cfg.Workflow.AutoApproveHighConfidence,
			HighConfidence:            cfg.Workflow.HighConfidence,
		},
		ragLogger: ragLogger,
	}
}

// Ask runs one question through the workflow. The caller must
// serialize questions on the same conversation; pipeline position is
// durable, so a suspended question survives a restart and resumes from
// the conversation id plus the echoed action.
func (s *assistantService) Ask(ctx context.Context, userId uuid.UUID, req *dto.AskRequest) (*dto.AskResponse, error) {
	record, conversation, err := s.loadOrCreateConversation(ctx, userId, req.ConversationId)
	if err != nil {
		return nil, err
	}

	explicitIds, err := s.verifyDocumentOwnership(ctx, userId, req.DocumentIds)
	if err != nil {
		return nil, err
	}

	coordinator := s.newCoordinator(userId, record.Id)

	outcome, processErr := coordinator.Process(ctx, conversation, workflow.Question{
		Text:                req.Message,
		ConversationID:      record.Id.String(),
		ExplicitDocumentIDs: explicitIds,
		Action:              req.Action,
	})

	// Persist position even on failure: pending evidence and the
	// workflow record are what make a retry cheap.
	if err := s.persistConversation(ctx, record, conversation, outcome); err != nil {
		s.ragLogger.Printf("[ERROR] Failed to persist conversation %s: %v", record.Id, err)
		if processErr == nil {
			return nil, err
		}
	}
	s.stateRepo.Save(conversation)

	if processErr != nil {
		return nil, processErr
	}

	if outcome.Answer != "" && s.eventPublisher != nil {
		evt := events.NewAnswerCompleted(record.Id.String(), userId.String(), outcome.State.StrategyUsed, outcome.State.APICallsSpent)
		if err := s.eventPublisher.Publish(ctx, evt); err != nil {
			s.ragLogger.Printf("[WARN] Failed to publish ANSWER_COMPLETED event: %v", err)
		}
	}

	return &dto.AskResponse{
		ConversationId:       record.Id,
		Answer:               outcome.Answer,
		PendingApproval:      outcome.PendingApproval,
		PendingClarification: outcome.PendingClarification,
		Classification:       dto.NewClassificationResponse(outcome.Classification),
		WorkflowState:        dto.NewWorkflowStateResponse(outcome.State),
		Evidence:             dto.NewEvidenceResponses(outcome.Evidence),
	}, nil
}

// newCoordinator assembles the per-request pipeline: the vector index
// and citation resolver are owner-scoped, everything else is shared.
func (s *assistantService) newCoordinator(userId uuid.UUID, conversationId uuid.UUID) *workflow.Coordinator {
	index := newUserSearchIndex(s.uowFactory, userId, s.retrievalConfig.Threshold)
	engine := retrieval.NewEngine(index, s.embeddingProvider, s.retrievalConfig, s.ragLogger)
	resolver := newUserDocumentResolver(s.uowFactory, userId)

	coordinator := workflow.NewCoordinator(
		s.classifier,
		engine,
		s.responder,
		resolver,
		s.poolManager,
		s.answerCache,
		s.policy,
		s.ragLogger,
	)

	if s.hub != nil {
		coordinator.SetObserver(func(step string) {
			s.hub.SendProgress(userId, websocket.ProgressEvent{
				ConversationID: conversationId.String(),
				Stage:          step,
			})
		})
	}
	return coordinator
}

func (s *assistantService) loadOrCreateConversation(ctx context.Context, userId uuid.UUID, conversationId *uuid.UUID) (*entity.Conversation, *store.Conversation, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	if conversationId == nil {
		record := &entity.Conversation{
			Id:        uuid.New(),
			UserId:    userId,
			CreatedAt: time.Now(),
		}
		conversation := &store.Conversation{
			ID:     record.Id.String(),
			UserID: userId.String(),
		}
		record.Context = conversation
		if err := uow.ConversationRepository().Create(ctx, record); err != nil {
			return nil, nil, err
		}
		return record, conversation, nil
	}

	record, err := uow.ConversationRepository().FindOne(ctx,
		specification.ByID{ID: *conversationId},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, nil, err
	}
	if record == nil {
		return nil, nil, serverutils.NewNotFoundError("conversation not found")
	}

	// Fast path: runtime state already cached on this instance.
	if cached, found := s.stateRepo.Get(record.Id.String()); found {
		return record, cached, nil
	}

	conversation := record.Context
	if conversation == nil {
		conversation = &store.Conversation{
			ID:     record.Id.String(),
			UserID: userId.String(),
			Round:  record.Round,
		}
	}
	return record, conversation, nil
}

// verifyDocumentOwnership rejects explicit document ids the user does
// not own. Malformed or foreign ids are an immediate error, not a
// silent filter.
func (s *assistantService) verifyDocumentOwnership(ctx context.Context, userId uuid.UUID, documentIds []uuid.UUID) ([]string, error) {
	if len(documentIds) == 0 {
		return nil, nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	count, err := uow.DocumentRepository().Count(ctx,
		specification.ByIDs{IDs: documentIds},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if count != int64(len(documentIds)) {
		return nil, serverutils.NewForbiddenError("one or more documents do not belong to you")
	}

	ids := make([]string, 0, len(documentIds))
	for _, id := range documentIds {
		ids = append(ids, id.String())
	}
	return ids, nil
}

func (s *assistantService) persistConversation(ctx context.Context, record *entity.Conversation, conversation *store.Conversation, outcome *workflow.Outcome) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	record.Context = conversation
	record.Round = conversation.Round
	now := time.Now()
	record.UpdatedAt = &now
	if err := uow.ConversationRepository().Update(ctx, record); err != nil {
		return err
	}

	// The snapshot is authoritative for runtime state; turn rows are
	// the query surface. A completed exchange or a clarification
	// prompt appends exactly one user and one assistant turn; approval
	// suspension and synthesis failure append none.
	added := 0
	if outcome != nil && (outcome.Answer != "" || outcome.PendingClarification != "") {
		added = 2
	}
	if added > len(conversation.Turns) {
		added = len(conversation.Turns)
	}

	var assistantTurnId uuid.UUID
	for _, turn := range conversation.Turns[len(conversation.Turns)-added:] {
		row := &entity.ConversationTurn{
			Id:             uuid.New(),
			Content:        turn.Content,
			Role:           turn.Role,
			TokensUsed:     turn.TokensUsed,
			ConversationId: record.Id,
			CreatedAt:      turn.CreatedAt,
		}
		if err := uow.ConversationTurnRepository().Create(ctx, row); err != nil {
			return err
		}
		if turn.Role == store.RoleAssistant {
			assistantTurnId = row.Id
		}
	}

	if outcome != nil && outcome.Answer != "" && assistantTurnId != uuid.Nil && len(outcome.Evidence) > 0 {
		citations := make([]*entity.TurnCitation, 0, len(outcome.Evidence))
		for _, ev := range outcome.Evidence {
			documentId, err := uuid.Parse(ev.DocumentID)
			if err != nil {
				continue
			}
			citations = append(citations, &entity.TurnCitation{
				Id:         uuid.New(),
				TurnId:     assistantTurnId,
				DocumentId: documentId,
				Score:      ev.Score,
			})
		}
		if len(citations) > 0 {
			if err := uow.TurnCitationRepository().CreateBulk(ctx, citations); err != nil {
				return fmt.Errorf("failed to store citations: %w", err)
			}
		}
	}

	return nil
}
