package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Keys      APIKeys
	Ai        AIConfig
	Retrieval RetrievalConfig
	Workflow  WorkflowConfig
	Pool      PoolConfig
	Cache     CacheConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JWTSecret          string
}

type DatabaseConfig struct {
	Connection string
}

type APIKeys struct {
	GoogleGemini   string
	EmbedDocsTopic string // document embedding job topic
}

type AIConfig struct {
	EmbeddingProvider string // "gemini" or "ollama"
	OllamaBaseURL     string
	OllamaModel       string
	LLMProvider       string // currently "ollama"
	LLMModel          string // e.g. "llama3", "qwen2.5"
}

type RetrievalConfig struct {
	Stage1K       int
	TopK          int
	Threshold     float64
	RRFK          int
	SummaryWeight float64
	ChunkWeight   float64
}

type WorkflowConfig struct {
	ConfidenceThreshold       float64
	AutoApproveAll            bool
	AutoApproveHighConfidence bool
	HighConfidence            float64
}

type PoolConfig struct {
	DecayRate     float64
	MinRelevance  float64
	MaxIdleRounds int
	MaxPool       int
	MaxTurns      int
}

type CacheConfig struct {
	MemoryTTL   time.Duration
	RedisTTL    time.Duration
	BackfillTTL time.Duration
	AnswerTTL   time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.csv"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JWTSecret:          getEnv("JWT_SECRET", ""),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			GoogleGemini:   getEnv("GOOGLE_GEMINI_API_KEY", ""),
			EmbedDocsTopic: getEnv("EMBED_DOCUMENT_TOPIC_NAME", "EMBED_DOCUMENT_CONTENT"),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "gemini"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
		},
		Retrieval: RetrievalConfig{
			Stage1K:       getEnvAsInt("RETRIEVAL_STAGE1_K", 10),
			TopK:          getEnvAsInt("RETRIEVAL_TOP_K", 5),
			Threshold:     getEnvAsFloat("RETRIEVAL_THRESHOLD", 0.3),
			RRFK:          getEnvAsInt("RETRIEVAL_RRF_K", 60),
			SummaryWeight: getEnvAsFloat("RETRIEVAL_SUMMARY_WEIGHT", 0.4),
			ChunkWeight:   getEnvAsFloat("RETRIEVAL_CHUNK_WEIGHT", 0.6),
		},
		Workflow: WorkflowConfig{
			ConfidenceThreshold:       getEnvAsFloat("INTENT_CONFIDENCE_THRESHOLD", 0.8),
			AutoApproveAll:            getEnvAsBool("WORKFLOW_AUTO_APPROVE_ALL", false),
			AutoApproveHighConfidence: getEnvAsBool("WORKFLOW_AUTO_APPROVE_HIGH_CONFIDENCE", false),
			HighConfidence:            getEnvAsFloat("WORKFLOW_HIGH_CONFIDENCE", 0.9),
		},
		Pool: PoolConfig{
			DecayRate:     getEnvAsFloat("POOL_DECAY_RATE", 0.1),
			MinRelevance:  getEnvAsFloat("POOL_MIN_RELEVANCE", 0.35),
			MaxIdleRounds: getEnvAsInt("POOL_MAX_IDLE_ROUNDS", 5),
			MaxPool:       getEnvAsInt("POOL_MAX_SIZE", 20),
			MaxTurns:      getEnvAsInt("CONVERSATION_MAX_TURNS", 50),
		},
		Cache: CacheConfig{
			MemoryTTL:   getEnvAsDuration("CACHE_MEMORY_TTL", 10*time.Minute),
			RedisTTL:    getEnvAsDuration("CACHE_REDIS_TTL", time.Hour),
			BackfillTTL: getEnvAsDuration("CACHE_BACKFILL_TTL", 5*time.Minute),
			AnswerTTL:   getEnvAsDuration("CACHE_ANSWER_TTL", time.Hour),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
