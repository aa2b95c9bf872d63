package retrieval

import "strings"

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// Split cuts text into chunks of at most size runes, each starting overlap
// runes before the end of the previous one. Whitespace-only chunks are
// dropped.
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); start += size - overlap {
		end := min(start+size, len(runes))
		if c := strings.TrimSpace(string(runes[start:end])); c != "" {
			chunks = append(chunks, c)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}
