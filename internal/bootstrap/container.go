package bootstrap

import (
	"context"
	"log"

	"ai-docqa-be/internal/config"
	"ai-docqa-be/internal/controller"
	"ai-docqa-be/internal/handler"
	"ai-docqa-be/internal/pkg/logger"
	"ai-docqa-be/internal/repository/memory"
	"ai-docqa-be/internal/repository/unitofwork"
	"ai-docqa-be/internal/service"
	"ai-docqa-be/internal/websocket"
	"ai-docqa-be/pkg/cache"
	"ai-docqa-be/pkg/embedding"
	"ai-docqa-be/pkg/llm/factory"
	"ai-docqa-be/pkg/rag/intent"
	"ai-docqa-be/pkg/rag/prompt"
	"ai-docqa-be/pkg/rag/response"

	pktNats "ai-docqa-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	DocumentController     controller.IDocumentController
	ConversationController controller.IConversationController
	AssistantController    controller.IAssistantController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets & Progress Stream
	ProgressHandler *handler.ProgressHandler
	WebSocketHub    *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	ragLogger := log.Default()

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. AI Providers
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// In-memory runtime state for active conversations
	stateRepo := memory.NewConversationStateRepository()

	// 3.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// Lookup cache: in-process layer in front of Redis. Holds answer
	// cache entries and rendered evidence fragments.
	lookupCache := cache.NewLayered(
		ragLogger,
		cfg.Cache.BackfillTTL,
		cache.NewMemoryLayer(cfg.Cache.MemoryTTL, cfg.Cache.MemoryTTL),
		cache.NewRedisLayer(rdb, "docqa", cfg.Cache.RedisTTL),
	)

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/progress.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 4. Question Pipeline
	classifier := intent.NewClassifier(llmProvider, cfg.Workflow.ConfidenceThreshold, ragLogger)
	promptBuilder := prompt.NewBuilder(lookupCache, cfg.Cache.MemoryTTL)
	responder := response.NewGenerator(llmProvider, promptBuilder, ragLogger)
	answerStore := response.NewAnswerStore(lookupCache, cfg.Cache.AnswerTTL)

	// 5. Services
	publisherService := service.NewPublisherService(pubSub, cfg.Keys.EmbedDocsTopic)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Keys.EmbedDocsTopic,
		uowFactory,
		embeddingProvider,
		llmProvider,
	)

	documentService := service.NewDocumentService(uowFactory, publisherService, natsPub)
	conversationService := service.NewConversationService(uowFactory, stateRepo)
	assistantService := service.NewAssistantService(
		uowFactory,
		stateRepo,
		classifier,
		responder,
		answerStore,
		embeddingProvider,
		natsPub,
		wsHub,
		cfg,
		ragLogger,
	)

	progressHandler := handler.NewProgressHandler(wsHub, sysLogger)

	return &Container{
		ProgressHandler: progressHandler,
		WebSocketHub:    wsHub,

		DocumentController:     controller.NewDocumentController(documentService),
		ConversationController: controller.NewConversationController(conversationService),
		AssistantController:    controller.NewAssistantController(assistantService),

		ConsumerService: consumerService,
	}
}
