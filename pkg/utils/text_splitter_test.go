package utils

import (
	"strings"
	"testing"
)

func TestSplitTextShortInputSingleChunk(t *testing.T) {
	chunks := SplitText("short text", 1500, 200)
	if len(chunks) != 1 || chunks[0] != "short text" {
		t.Errorf("chunks = %v, want the input untouched", chunks)
	}
}

func TestSplitTextOverlapPreserved(t *testing.T) {
	text := strings.Repeat("abcdefghij", 40) // 400 chars
	chunks := SplitText(text, 100, 20)

	if len(chunks) < 4 {
		t.Fatalf("got %d chunks, want at least 4", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		tail := chunks[i-1][len(chunks[i-1])-20:]
		if !strings.HasPrefix(chunks[i], tail) {
			t.Errorf("chunk %d does not start with the previous chunk's overlap", i)
		}
	}
}

func TestSplitTextWithLinesTracksRanges(t *testing.T) {
	var b strings.Builder
	for i := 1; i <= 30; i++ {
		b.WriteString(strings.Repeat("x", 40))
		if i < 30 {
			b.WriteString("\n")
		}
	}

	chunks := SplitTextWithLines(b.String(), 200, 1)

	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want the text split", len(chunks))
	}
	if chunks[0].LineStart != 1 {
		t.Errorf("first chunk starts at line %d, want 1", chunks[0].LineStart)
	}
	last := chunks[len(chunks)-1]
	if last.LineEnd != 30 {
		t.Errorf("last chunk ends at line %d, want 30", last.LineEnd)
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i].LineStart > chunks[i-1].LineEnd {
			t.Errorf("chunk %d starts at %d after previous end %d, lost lines", i, chunks[i].LineStart, chunks[i-1].LineEnd)
		}
		if chunks[i].LineStart <= chunks[i-1].LineStart {
			t.Errorf("chunk %d does not advance", i)
		}
	}
}

func TestSplitTextWithLinesShortInput(t *testing.T) {
	chunks := SplitTextWithLines("one\ntwo", 1500, 2)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].LineStart != 1 || chunks[0].LineEnd != 2 {
		t.Errorf("range = %d-%d, want 1-2", chunks[0].LineStart, chunks[0].LineEnd)
	}
}
