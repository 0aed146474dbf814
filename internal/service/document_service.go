// FILE: internal/service/document_service.go
package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"ai-docqa-be/internal/dto"
	"ai-docqa-be/internal/entity"
	"ai-docqa-be/internal/pkg/serverutils"
	"ai-docqa-be/internal/repository/specification"
	"ai-docqa-be/internal/repository/unitofwork"
	"ai-docqa-be/pkg/events"
	pktNats "ai-docqa-be/pkg/nats"

	"github.com/google/uuid"
)

type IDocumentService interface {
	Create(ctx context.Context, userId uuid.UUID, req *dto.CreateDocumentRequest) (*dto.CreateDocumentResponse, error)
	Show(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.ShowDocumentResponse, error)
	List(ctx context.Context, userId uuid.UUID) ([]*dto.ListDocumentItem, error)
	Update(ctx context.Context, userId uuid.UUID, req *dto.UpdateDocumentRequest) (*dto.UpdateDocumentResponse, error)
	Delete(ctx context.Context, userId uuid.UUID, id uuid.UUID) error
}

type documentService struct {
	uowFactory       unitofwork.RepositoryFactory
	publisherService IPublisherService
	eventPublisher   *pktNats.Publisher
}

func NewDocumentService(
	uowFactory unitofwork.RepositoryFactory,
	publisherService IPublisherService,
	eventPublisher *pktNats.Publisher,
) IDocumentService {
	return &documentService{
		uowFactory:       uowFactory,
		publisherService: publisherService,
		eventPublisher:   eventPublisher,
	}
}

func (c *documentService) Create(ctx context.Context, userId uuid.UUID, req *dto.CreateDocumentRequest) (*dto.CreateDocumentResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)
	document := entity.Document{
		Id:          uuid.New(),
		Filename:    req.Filename,
		Content:     req.Content,
		Summary:     req.Summary,
		KeyConcepts: req.KeyConcepts,
		UserId:      userId,
		CreatedAt:   time.Now(),
	}

	err := uow.DocumentRepository().Create(ctx, &document)
	if err != nil {
		return nil, err
	}

	if err := c.publishEmbedJob(ctx, document.Id); err != nil {
		return nil, err
	}

	// Publish event for downstream systems
	if c.eventPublisher != nil {
		evt := events.NewDocumentCreated(document.Id.String(), userId.String(), document.Filename)
		// We log error but don't fail the request as the event bus is auxiliary
		if err := c.eventPublisher.Publish(ctx, evt); err != nil {
			log.Printf("[WARN] Failed to publish DOCUMENT_CREATED event: %v", err)
		}
	}

	return &dto.CreateDocumentResponse{
		Id: document.Id,
	}, nil
}

func (c *documentService) Show(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.ShowDocumentResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)
	document, err := uow.DocumentRepository().FindOne(ctx,
		specification.ByID{ID: id},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if document == nil {
		return nil, serverutils.NewNotFoundError("document not found")
	}

	return &dto.ShowDocumentResponse{
		Id:          document.Id,
		Filename:    document.Filename,
		Content:     document.Content,
		Summary:     document.Summary,
		KeyConcepts: document.KeyConcepts,
		CreatedAt:   document.CreatedAt,
		UpdatedAt:   document.UpdatedAt,
	}, nil
}

func (c *documentService) List(ctx context.Context, userId uuid.UUID) ([]*dto.ListDocumentItem, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)
	documents, err := uow.DocumentRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.ListDocumentItem, 0, len(documents))
	for _, document := range documents {
		items = append(items, &dto.ListDocumentItem{
			Id:        document.Id,
			Filename:  document.Filename,
			Summary:   document.Summary,
			CreatedAt: document.CreatedAt,
		})
	}
	return items, nil
}

func (c *documentService) Update(ctx context.Context, userId uuid.UUID, req *dto.UpdateDocumentRequest) (*dto.UpdateDocumentResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)
	document, err := uow.DocumentRepository().FindOne(ctx,
		specification.ByID{ID: req.Id},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if document == nil {
		return nil, serverutils.NewNotFoundError("document not found")
	}

	contentChanged := false
	if req.Filename != "" {
		document.Filename = req.Filename
	}
	if req.Content != "" && req.Content != document.Content {
		document.Content = req.Content
		contentChanged = true
	}
	if req.Summary != "" {
		document.Summary = req.Summary
		contentChanged = true
	}
	if len(req.KeyConcepts) > 0 {
		document.KeyConcepts = req.KeyConcepts
	}
	now := time.Now()
	document.UpdatedAt = &now

	if err := uow.DocumentRepository().Update(ctx, document); err != nil {
		return nil, err
	}

	// Content changes invalidate the vectors, re-embed
	if contentChanged {
		if err := c.publishEmbedJob(ctx, document.Id); err != nil {
			return nil, err
		}
	}

	return &dto.UpdateDocumentResponse{Id: document.Id}, nil
}

func (c *documentService) Delete(ctx context.Context, userId uuid.UUID, id uuid.UUID) error {
	uow := c.uowFactory.NewUnitOfWork(ctx)
	document, err := uow.DocumentRepository().FindOne(ctx,
		specification.ByID{ID: id},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return err
	}
	if document == nil {
		return nil // Already gone
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.DocumentEmbeddingRepository().DeleteByDocumentId(ctx, id); err != nil {
		return err
	}
	if err := uow.DocumentRepository().Delete(ctx, id); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return err
	}

	if c.eventPublisher != nil {
		evt := events.BaseEvent{
			Type: events.TypeDocumentDeleted,
			Data: map[string]interface{}{
				"document_id": id,
				"user_id":     userId,
			},
			OccurredAt: time.Now(),
		}
		if err := c.eventPublisher.Publish(ctx, evt); err != nil {
			log.Printf("[WARN] Failed to publish DOCUMENT_DELETED event: %v", err)
		}
	}

	return nil
}

func (c *documentService) publishEmbedJob(ctx context.Context, documentId uuid.UUID) error {
	msgPayload := dto.PublishEmbedDocumentMessage{
		DocumentId: documentId,
	}
	msgJson, err := json.Marshal(msgPayload)
	if err != nil {
		return err
	}
	return c.publisherService.Publish(ctx, msgJson)
}
