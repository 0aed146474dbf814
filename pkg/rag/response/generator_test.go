package response

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"ai-docqa-be/pkg/llm"
	"ai-docqa-be/pkg/rag/prompt"
	"ai-docqa-be/pkg/store"
)

type recordingLLM struct {
	lastPrompt   string
	lastMessages []llm.Message
	reply        string
	err          error
}

func (r *recordingLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	r.lastMessages = history
	return r.reply, r.err
}

func (r *recordingLLM) Generate(ctx context.Context, p string, options ...llm.Option) (string, error) {
	r.lastPrompt = p
	return r.reply, r.err
}

func newTestGenerator(provider llm.LLMProvider) *Generator {
	return NewGenerator(provider, prompt.NewBuilder(nil, 0), log.New(io.Discard, "", 0))
}

func TestSynthesizeGroundsPromptInEvidence(t *testing.T) {
	provider := &recordingLLM{reply: "The fine is due in 30 days [1]."}
	generator := newTestGenerator(provider)

	answer, err := generator.Synthesize(context.Background(), "when is the fine due?", []store.FusedResult{
		{DocumentID: "d1", Score: 0.9, Text: "Payment due within 30 days."},
	}, nil)
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	if answer != provider.reply {
		t.Errorf("answer = %q", answer)
	}
	if !strings.Contains(provider.lastPrompt, "Payment due within 30 days.") {
		t.Error("prompt must embed the evidence text")
	}
}

func TestSynthesizeWrapsProviderError(t *testing.T) {
	generator := newTestGenerator(&recordingLLM{err: errors.New("overloaded")})

	_, err := generator.Synthesize(context.Background(), "q", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "synthesis failed") {
		t.Errorf("err = %v, want a wrapped synthesis error", err)
	}
}

func TestDirectUsesChatWithHistory(t *testing.T) {
	provider := &recordingLLM{reply: "Hello!"}
	generator := newTestGenerator(provider)

	reply, err := generator.Direct(context.Background(), "hi", []llm.Message{
		{Role: store.RoleAssistant, Content: "earlier reply"},
	})
	if err != nil {
		t.Fatalf("Direct error: %v", err)
	}
	if reply != "Hello!" {
		t.Errorf("reply = %q", reply)
	}
	if len(provider.lastMessages) != 3 {
		t.Errorf("chat messages = %d, want system + history + question", len(provider.lastMessages))
	}
}
