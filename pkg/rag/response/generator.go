// Package response is the generative boundary of the question
// pipeline: direct conversational replies and evidence-grounded
// answers.
package response

import (
	"context"
	"fmt"
	"log"
	"time"

	"ai-docqa-be/pkg/cache"
	"ai-docqa-be/pkg/llm"
	"ai-docqa-be/pkg/rag/prompt"
	"ai-docqa-be/pkg/store"
)

type Generator struct {
	llmProvider llm.LLMProvider
	prompts     *prompt.Builder
	logger      *log.Logger
}

func NewGenerator(llmProvider llm.LLMProvider, prompts *prompt.Builder, logger *log.Logger) *Generator {
	return &Generator{
		llmProvider: llmProvider,
		prompts:     prompts,
		logger:      logger,
	}
}

// Direct answers greetings and small talk without touching evidence.
func (g *Generator) Direct(ctx context.Context, question string, chatHistory []llm.Message) (string, error) {
	messages := g.prompts.Direct(question, chatHistory)

	reply, err := g.llmProvider.Chat(ctx, messages, llm.WithTemperature(0.7))
	if err != nil {
		return "", fmt.Errorf("direct reply generation failed: %w", err)
	}
	return reply, nil
}

// Synthesize turns retrieved evidence into prose. The caller treats a
// failure here as recoverable and keeps the evidence for a retry.
func (g *Generator) Synthesize(ctx context.Context, question string, evidence []store.FusedResult, chatHistory []llm.Message) (string, error) {
	started := time.Now()
	answerPrompt := g.prompts.Answer(ctx, question, evidence, chatHistory)

	answer, err := g.llmProvider.Generate(ctx, answerPrompt, llm.WithTemperature(0.3))
	if err != nil {
		return "", fmt.Errorf("synthesis failed: %w", err)
	}

	g.logger.Printf("[RESPONSE] Synthesized answer from %d evidence blocks in %s", len(evidence), time.Since(started).Round(time.Millisecond))
	return answer, nil
}

// AnswerStore adapts the layered cache to the coordinator's answer
// cache with a fixed TTL.
type AnswerStore struct {
	cache *cache.Layered
	ttl   time.Duration
}

func NewAnswerStore(layered *cache.Layered, ttl time.Duration) *AnswerStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AnswerStore{cache: layered, ttl: ttl}
}

func (s *AnswerStore) Get(ctx context.Context, key string) (string, bool) {
	return s.cache.Get(ctx, key)
}

func (s *AnswerStore) Set(ctx context.Context, key string, value string) {
	s.cache.Set(ctx, key, value, s.ttl)
}
