package history

import (
	"fmt"
	"testing"

	"ai-docqa-be/pkg/store"
)

func TestWindowKeepsMostRecentTurnsInOrder(t *testing.T) {
	var turns []store.Turn
	for i := 0; i < 15; i++ {
		turns = append(turns, store.Turn{Role: store.RoleUser, Content: fmt.Sprintf("turn %d", i)})
	}

	messages := Window(turns, 10)

	if len(messages) != 10 {
		t.Fatalf("got %d messages, want 10", len(messages))
	}
	if messages[0].Content != "turn 5" || messages[9].Content != "turn 14" {
		t.Errorf("window = [%s .. %s], want [turn 5 .. turn 14]", messages[0].Content, messages[9].Content)
	}
}

func TestWindowShorterLogPassesThrough(t *testing.T) {
	turns := []store.Turn{
		{Role: store.RoleUser, Content: "hello"},
		{Role: store.RoleAssistant, Content: "hi"},
	}

	messages := Window(turns, 10)

	if len(messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(messages))
	}
	if messages[1].Role != store.RoleAssistant {
		t.Errorf("role = %s, want assistant", messages[1].Role)
	}
}

func TestWindowZeroMaxUsesDefault(t *testing.T) {
	var turns []store.Turn
	for i := 0; i < DefaultWindow+5; i++ {
		turns = append(turns, store.Turn{Role: store.RoleUser, Content: "x"})
	}

	if got := len(Window(turns, 0)); got != DefaultWindow {
		t.Errorf("got %d messages, want default window %d", got, DefaultWindow)
	}
}
