package prompt

import (
	"context"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"ai-docqa-be/pkg/cache"
	"ai-docqa-be/pkg/llm"
	"ai-docqa-be/pkg/store"
)

func TestAnswerPromptContainsEvidenceAndQuestion(t *testing.T) {
	builder := NewBuilder(nil, 0)

	prompt := builder.Answer(context.Background(), "when is the fine due?", []store.FusedResult{
		{DocumentID: "d1", Score: 0.91, Text: "Payment due within 30 days.", LineStart: 4, LineEnd: 6},
	}, []llm.Message{{Role: store.RoleUser, Content: "find my parking tickets"}})

	for _, want := range []string{
		"when is the fine due?",
		"Payment due within 30 days.",
		"lines 4-6",
		"[1]",
		"find my parking tickets",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestAnswerPromptCachesFragments(t *testing.T) {
	inner := cache.NewMemoryLayer(time.Minute, time.Minute)
	layered := cache.NewLayered(log.New(io.Discard, "", 0), time.Minute, inner)
	builder := NewBuilder(layered, time.Minute)

	ev := []store.FusedResult{{DocumentID: "d1", Score: 0.8, Text: "chunk text", LineStart: 1, LineEnd: 3}}

	first := builder.Answer(context.Background(), "q", ev, nil)
	second := builder.Answer(context.Background(), "q", ev, nil)

	if first != second {
		t.Error("cached fragment must render identically")
	}
	if _, ok, _ := inner.Get(context.Background(), "fragment:d1:1-3"); !ok {
		t.Error("fragment was not written to the cache layer")
	}
}

func TestDirectPromptOrdering(t *testing.T) {
	builder := NewBuilder(nil, 0)

	messages := builder.Direct("hello!", []llm.Message{
		{Role: store.RoleUser, Content: "earlier question"},
	})

	if len(messages) != 3 {
		t.Fatalf("got %d messages, want system + history + question", len(messages))
	}
	if messages[0].Role != "system" {
		t.Errorf("first role = %s, want system", messages[0].Role)
	}
	if messages[2].Content != "hello!" {
		t.Errorf("last message = %q, want the question", messages[2].Content)
	}
}
