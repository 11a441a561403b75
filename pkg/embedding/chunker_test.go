package embedding

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText_Empty(t *testing.T) {
	assert.Nil(t, ChunkText("", DefaultChunkSize, DefaultOverlap))
	assert.Nil(t, ChunkText("   \n\t ", DefaultChunkSize, DefaultOverlap))
}

func TestChunkText_SingleChunk(t *testing.T) {
	text := "A short note about groceries."
	chunks := ChunkText(text, DefaultChunkSize, DefaultOverlap)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestChunkText_BreaksAtSentence(t *testing.T) {
	// Two sentences; the window ends mid-second-sentence, so the cut must
	// land after the first terminator.
	text := "First sentence ends here. Second sentence is quite a bit longer and keeps going."
	chunks := ChunkText(text, 40, 5)

	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, "First sentence ends here.", chunks[0])
}

func TestChunkText_BreaksAtNewlineWhenNoSentence(t *testing.T) {
	text := "line one without terminator\nline two continues here and keeps going on and on"
	chunks := ChunkText(text, 40, 5)

	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, "line one without terminator", chunks[0])
}

func TestChunkText_Overlap(t *testing.T) {
	words := make([]string, 0, 200)
	for i := 0; i < 200; i++ {
		words = append(words, "word")
	}
	text := strings.Join(words, " ")

	chunks := ChunkText(text, 100, 20)
	require.Greater(t, len(chunks), 1)

	// Every chunk respects the window size.
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 100)
		assert.NotEmpty(t, strings.TrimSpace(c))
	}

	// Full coverage: concatenation contains at least as much text as the input
	// minus whitespace trimming; last chunk ends where the text ends.
	assert.True(t, strings.HasSuffix(text, chunks[len(chunks)-1]))
}

func TestChunkText_LongUnbrokenText(t *testing.T) {
	// No spaces, newlines, or terminators anywhere: hard cuts only, and the
	// chunker must still terminate.
	text := strings.Repeat("a", 3500)
	chunks := ChunkText(text, 1000, 100)

	require.NotEmpty(t, chunks)
	total := 0
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 1000)
		total += len(c)
	}
	assert.GreaterOrEqual(t, total, len(text))
}

func TestChunkText_DefaultsApplied(t *testing.T) {
	text := strings.Repeat("sentence here. ", 200)
	chunks := ChunkText(text, 0, -1)

	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), DefaultChunkSize)
	}
}
