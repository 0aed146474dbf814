// FILE: internal/service/consumer_service.go
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"ai-docqa-be/internal/dto"
	"ai-docqa-be/internal/entity"
	"ai-docqa-be/internal/repository/specification"
	"ai-docqa-be/internal/repository/unitofwork"
	"ai-docqa-be/pkg/embedding"
	"ai-docqa-be/pkg/llm"
	"ai-docqa-be/pkg/store"
	"ai-docqa-be/pkg/utils"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

const (
	// ChunkSize: 1500 chars (approx 375 tokens) - safe for context limits
	chunkSize         = 1500
	chunkOverlapLines = 2
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub            *gochannel.GoChannel
	topicName         string
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.EmbeddingProvider
	llmProvider       llm.LLMProvider
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	embeddingProvider embedding.EmbeddingProvider,
	llmProvider llm.LLMProvider,
) IConsumerService {
	return &consumerService{
		pubSub:            pubSub,
		topicName:         topicName,
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
		llmProvider:       llmProvider,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishEmbedDocumentMessage
	err := json.Unmarshal(msg.Payload, &payload)
	if err != nil {
		log.Printf("[ERROR] Failed to unmarshal message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	log.Printf("[INFO] Processing embeddings for DocumentId: %s", payload.DocumentId)

	uow := cs.uowFactory.NewUnitOfWork(ctx)

	document, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: payload.DocumentId})
	if err != nil {
		log.Printf("[ERROR] Failed to get document %s: %v", payload.DocumentId, err)
		msg.Nack() // Nack for retriable errors
		return
	}
	if document == nil {
		log.Printf("[ERROR] Document not found: %s", payload.DocumentId)
		msg.Ack() // Document deleted? Ack.
		return
	}

	// Fill the summary and key concepts if ingestion got a bare upload.
	if document.Summary == "" {
		summary, concepts := cs.describeDocument(ctx, document)
		if summary != "" {
			document.Summary = summary
			document.KeyConcepts = concepts
			if err := uow.DocumentRepository().Update(ctx, document); err != nil {
				log.Printf("[WARN] Failed to store generated summary for %s: %v", document.Id, err)
			}
		}
	}

	newEmbeddings, err := cs.buildEmbeddings(document)
	if err != nil {
		log.Printf("[ERROR] %v", err)
		msg.Nack()
		return
	}

	if err := uow.Begin(ctx); err != nil {
		log.Printf("[ERROR] Failed to begin transaction: %v", err)
		msg.Nack()
		return
	}
	defer uow.Rollback()

	log.Printf("[INFO] Deleting old embeddings for document %s", payload.DocumentId)
	if err := uow.DocumentEmbeddingRepository().DeleteByDocumentId(ctx, document.Id); err != nil {
		log.Printf("[ERROR] Failed to delete old embeddings: %v", err)
		msg.Nack()
		return
	}

	log.Printf("[INFO] Creating %d new embeddings for document %s", len(newEmbeddings), payload.DocumentId)
	if len(newEmbeddings) > 0 {
		if err := uow.DocumentEmbeddingRepository().CreateBulk(ctx, newEmbeddings); err != nil {
			log.Printf("[ERROR] Failed to create bulk embeddings: %v", err)
			msg.Nack()
			return
		}
	}

	if err := uow.Commit(); err != nil {
		log.Printf("[ERROR] Failed to commit transaction: %v", err)
		msg.Nack()
		return
	}

	log.Printf("[SUCCESS] Document processed: %d vectors for DocumentId: %s", len(newEmbeddings), payload.DocumentId)
	msg.Ack()
}

// buildEmbeddings produces one summary vector plus one vector per
// content chunk, each chunk keeping its source line range.
func (cs *consumerService) buildEmbeddings(document *entity.Document) ([]*entity.DocumentEmbedding, error) {
	var newEmbeddings []*entity.DocumentEmbedding

	summaryText := document.Summary
	if len(document.KeyConcepts) > 0 {
		summaryText = fmt.Sprintf("%s\n\nKey concepts: %s", summaryText, strings.Join(document.KeyConcepts, ", "))
	}
	if summaryText != "" {
		res, err := cs.embeddingProvider.Generate(summaryText, embedding.TaskRetrievalDocument)
		if err != nil {
			return nil, fmt.Errorf("failed to generate summary embedding for document %s: %w", document.Id, err)
		}
		newEmbeddings = append(newEmbeddings, &entity.DocumentEmbedding{
			Id:         uuid.New(),
			DocumentId: document.Id,
			VectorType: store.VectorTypeSummary,
			Content:    summaryText,
			Embedding:  res.Embedding.Values,
			CreatedAt:  time.Now(),
		})
	}

	chunks := utils.SplitTextWithLines(document.Content, chunkSize, chunkOverlapLines)
	log.Printf("[INFO] Content split into %d chunks", len(chunks))

	for i, chunk := range chunks {
		res, err := cs.embeddingProvider.Generate(chunk.Text, embedding.TaskRetrievalDocument)
		if err != nil {
			return nil, fmt.Errorf("failed to generate embedding for chunk %d of document %s: %w", i, document.Id, err)
		}

		newEmbeddings = append(newEmbeddings, &entity.DocumentEmbedding{
			Id:         uuid.New(),
			DocumentId: document.Id,
			VectorType: store.VectorTypeChunk,
			ChunkIndex: i,
			Content:    chunk.Text,
			Embedding:  res.Embedding.Values,
			LineStart:  chunk.LineStart,
			LineEnd:    chunk.LineEnd,
			CreatedAt:  time.Now(),
		})
	}

	return newEmbeddings, nil
}

// describeDocument asks the model for a short summary and key concept
// list. Failures leave the document as-is; summary search simply skips
// it until a re-embed.
func (cs *consumerService) describeDocument(ctx context.Context, document *entity.Document) (string, []string) {
	content := document.Content
	if len(content) > 6000 {
		content = content[:6000]
	}

	var prompt strings.Builder
	prompt.WriteString("Summarize the following document in 2-3 sentences, then list up to 5 key concepts.\n")
	prompt.WriteString("Respond with ONLY valid JSON: {\"summary\": \"...\", \"key_concepts\": [\"...\"]}\n\n")
	prompt.WriteString(fmt.Sprintf("Filename: %s\n\n%s", document.Filename, content))

	response, err := cs.llmProvider.Generate(ctx, prompt.String(), llm.WithTemperature(0.2))
	if err != nil {
		log.Printf("[WARN] Summary generation failed for document %s: %v", document.Id, err)
		return "", nil
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end <= start {
		log.Printf("[WARN] Summary response contained no JSON for document %s", document.Id)
		return "", nil
	}

	var parsed struct {
		Summary     string   `json:"summary"`
		KeyConcepts []string `json:"key_concepts"`
	}
	if err := json.Unmarshal([]byte(response[start:end+1]), &parsed); err != nil {
		log.Printf("[WARN] Summary response parse failed for document %s: %v", document.Id, err)
		return "", nil
	}

	return strings.TrimSpace(parsed.Summary), parsed.KeyConcepts
}
