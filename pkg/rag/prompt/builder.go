// Package prompt assembles model prompts from questions, chat history
// and retrieved evidence. Formatted evidence fragments are derived
// values, so they go through the layered lookup cache.
package prompt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ai-docqa-be/pkg/cache"
	"ai-docqa-be/pkg/llm"
	"ai-docqa-be/pkg/store"
)

const defaultFragmentTTL = 30 * time.Minute

type Builder struct {
	fragments   *cache.Layered
	fragmentTTL time.Duration
}

// NewBuilder creates a prompt builder. fragments may be nil, in which
// case every fragment is formatted from scratch.
func NewBuilder(fragments *cache.Layered, fragmentTTL time.Duration) *Builder {
	if fragmentTTL <= 0 {
		fragmentTTL = defaultFragmentTTL
	}
	return &Builder{fragments: fragments, fragmentTTL: fragmentTTL}
}

// Answer builds the evidence-grounded answer prompt.
func (b *Builder) Answer(ctx context.Context, question string, evidence []store.FusedResult, chatHistory []llm.Message) string {
	var prompt strings.Builder

	prompt.WriteString("<system>\n")
	prompt.WriteString("You are a document assistant. Answer the user's question using ONLY the evidence below.\n")
	prompt.WriteString("Cite documents by their number, like [1]. If the evidence does not cover the question, say so.\n")
	prompt.WriteString("</system>\n\n")

	if len(chatHistory) > 0 {
		prompt.WriteString("<conversation>\n")
		for _, msg := range chatHistory {
			prompt.WriteString(fmt.Sprintf("%s: %s\n", msg.Role, msg.Content))
		}
		prompt.WriteString("</conversation>\n\n")
	}

	prompt.WriteString("<evidence>\n")
	for i, ev := range evidence {
		prompt.WriteString(b.evidenceFragment(ctx, i+1, ev))
	}
	prompt.WriteString("</evidence>\n\n")

	prompt.WriteString("<question>\n")
	prompt.WriteString(question)
	prompt.WriteString("\n</question>")

	return prompt.String()
}

// Direct builds the prompt for conversational replies that need no
// evidence.
func (b *Builder) Direct(question string, chatHistory []llm.Message) []llm.Message {
	messages := make([]llm.Message, 0, len(chatHistory)+2)
	messages = append(messages, llm.Message{
		Role:    "system",
		Content: "You are a friendly document assistant. Reply briefly and naturally. Do not invent document contents.",
	})
	messages = append(messages, chatHistory...)
	messages = append(messages, llm.Message{Role: store.RoleUser, Content: question})
	return messages
}

// evidenceFragment formats one evidence block, reusing the cached
// rendering when the same document region was formatted before.
func (b *Builder) evidenceFragment(ctx context.Context, position int, ev store.FusedResult) string {
	key := fragmentKey(ev)

	if b.fragments != nil {
		if cached, ok := b.fragments.Get(ctx, key); ok {
			return fmt.Sprintf("[%d] %s", position, cached)
		}
	}

	var fragment strings.Builder
	fragment.WriteString(fmt.Sprintf("(document %s", ev.DocumentID))
	if ev.LineStart > 0 {
		fragment.WriteString(fmt.Sprintf(", lines %d-%d", ev.LineStart, ev.LineEnd))
	}
	fragment.WriteString(fmt.Sprintf(", score %.2f)\n", ev.Score))
	fragment.WriteString(strings.TrimSpace(ev.Text))
	fragment.WriteString("\n\n")
	rendered := fragment.String()

	if b.fragments != nil {
		b.fragments.Set(ctx, key, rendered, b.fragmentTTL)
	}
	return fmt.Sprintf("[%d] %s", position, rendered)
}

func fragmentKey(ev store.FusedResult) string {
	return fmt.Sprintf("fragment:%s:%d-%d", ev.DocumentID, ev.LineStart, ev.LineEnd)
}
