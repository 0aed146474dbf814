package utils

import "strings"

// Chunk is one slice of a document plus the 1-based line range it was
// cut from, so retrieval hits can point back into the source.
type Chunk struct {
	Text      string
	LineStart int
	LineEnd   int
}

// SplitText splits a long string into chunks of approximately 'chunkSize' characters.
// It includes an 'overlap' to preserve context at boundaries.
// This is a simple character-based splitter. Ideally, use a tokenizer-aware splitter.
func SplitText(text string, chunkSize int, overlap int) []string {
	if len(text) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)
	totalLen := len(runes)

	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize // fallback if overlap >= chunkSize
	}

	for i := 0; i < totalLen; i += step {
		end := i + chunkSize
		if end > totalLen {
			end = totalLen
		}

		chunks = append(chunks, string(runes[i:end]))

		if end == totalLen {
			break
		}
	}

	return chunks
}

// SplitTextWithLines chunks a document by whole lines, keeping chunks
// near 'chunkSize' characters with 'overlapLines' lines of context
// repeated at each boundary.
func SplitTextWithLines(text string, chunkSize int, overlapLines int) []Chunk {
	lines := strings.Split(text, "\n")
	if len(text) <= chunkSize {
		return []Chunk{{Text: text, LineStart: 1, LineEnd: len(lines)}}
	}
	if overlapLines < 0 {
		overlapLines = 0
	}

	var chunks []Chunk
	start := 0
	for start < len(lines) {
		size := 0
		end := start
		for end < len(lines) {
			lineLen := len(lines[end]) + 1
			if size > 0 && size+lineLen > chunkSize {
				break
			}
			size += lineLen
			end++
		}

		chunks = append(chunks, Chunk{
			Text:      strings.Join(lines[start:end], "\n"),
			LineStart: start + 1,
			LineEnd:   end,
		})

		if end == len(lines) {
			break
		}

		next := end - overlapLines
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}
