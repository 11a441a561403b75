// Package embedding provides text chunking and the pgvector-backed
// embedding store used for semantic search.
package embedding

import "strings"

// Chunking defaults tuned for embedding input: large chunks with a small
// overlap keep the number of vectors per session low.
const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 100

	// MaxChunksPerSession caps stored vectors per session; overflow is
	// dropped with a warning upstream.
	MaxChunksPerSession = 50
)

// sentenceBreaks are preferred cut points, checked before newline and space.
var sentenceBreaks = []string{". ", ".\n", "! ", "!\n", "? ", "?\n"}

// ChunkText splits text into overlapping chunks for embedding generation.
//
// Cut preference inside the window: last sentence terminator, then last
// newline, then last space; a hard cut only when the window has no break at
// all. Consecutive chunks overlap by `overlap` characters.
func ChunkText(text string, chunkSize, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultOverlap
	}

	if len(text) <= chunkSize {
		return []string{strings.TrimSpace(text)}
	}

	var chunks []string
	start := 0

	for start < len(text) {
		end := start + chunkSize

		if end >= len(text) {
			if chunk := strings.TrimSpace(text[start:]); chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		breakPoint := end
		for _, punct := range sentenceBreaks {
			if idx := strings.LastIndex(text[start:end], punct); idx != -1 {
				breakPoint = start + idx + len(punct)
				break
			}
		}
		if breakPoint == end {
			if idx := strings.LastIndex(text[start:end], "\n"); idx != -1 {
				breakPoint = start + idx + 1
			}
		}
		if breakPoint == end {
			if idx := strings.LastIndex(text[start:end], " "); idx != -1 {
				breakPoint = start + idx + 1
			}
		}

		if chunk := strings.TrimSpace(text[start:breakPoint]); chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := breakPoint - overlap
		if next <= start {
			// Break landed inside the overlap window; advance without
			// overlap to guarantee progress.
			next = breakPoint
		}
		start = next
	}

	return chunks
}
