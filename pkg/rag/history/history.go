// Package history converts the bounded turn log into model-facing chat
// messages.
package history

import (
	"ai-docqa-be/pkg/llm"
	"ai-docqa-be/pkg/store"
)

// DefaultWindow is the number of most recent turns handed to the model.
const DefaultWindow = 10

// Window returns the last max turns as chat messages, oldest first.
func Window(turns []store.Turn, max int) []llm.Message {
	if max <= 0 {
		max = DefaultWindow
	}
	start := len(turns) - max
	if start < 0 {
		start = 0
	}

	messages := make([]llm.Message, 0, len(turns)-start)
	for _, turn := range turns[start:] {
		messages = append(messages, llm.Message{
			Role:    turn.Role,
			Content: turn.Content,
		})
	}
	return messages
}
