package chunker_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/elf/internal/chunker"
	"github.com/steveyegge/elf/internal/config"
)

func TestSplitIndexesChunksInOrder(t *testing.T) {
	c, err := chunker.New(config.Chunking{MaxTokens: 10, OverlapTokens: 2, TokenizerRepo: "Qwen/Qwen3-Embedding-8B"})
	require.NoError(t, err)

	chunks := c.Split("One. Two. Three. Four.")

	require.NotEmpty(t, chunks)
	assert.Contains(t, chunks[0].Text, "One")
	for i, ch := range chunks {
		assert.Equal(t, int32(i), ch.ChunkIndex)
		assert.LessOrEqual(t, ch.StartOffset, ch.EndOffset)
	}
}

func TestSplitSingleShortSentenceIsOneChunk(t *testing.T) {
	c, err := chunker.New(config.Chunking{MaxTokens: 4096, OverlapTokens: 16})
	require.NoError(t, err)

	chunks := c.Split("A short note.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "A short note.", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].StartOffset)
}

func TestSplitEmptyTextProducesNoChunks(t *testing.T) {
	c, err := chunker.New(config.Chunking{MaxTokens: 10, OverlapTokens: 2})
	require.NoError(t, err)

	assert.Empty(t, c.Split(""))
}

func TestSplitLongTextProducesMultipleChunks(t *testing.T) {
	c, err := chunker.New(config.Chunking{MaxTokens: 5, OverlapTokens: 1})
	require.NoError(t, err)

	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 20)
	chunks := c.Split(text)

	require.Greater(t, len(chunks), 1)
	reconstructed := chunks[0].Text
	for _, ch := range chunks[1:] {
		assert.GreaterOrEqual(t, ch.StartOffset, 0)
		reconstructed += ch.Text
	}
	assert.NotEmpty(t, reconstructed)
}
