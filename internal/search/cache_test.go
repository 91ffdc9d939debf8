package search

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildExpansionCacheKeyStableForSameInputs(t *testing.T) {
	k1, err := buildExpansionCacheKey("deploy window", 3, true, "openai", "gpt-4.1-mini", 0.2)
	require.NoError(t, err)
	k2, err := buildExpansionCacheKey("deploy window", 3, true, "openai", "gpt-4.1-mini", 0.2)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	k3, err := buildExpansionCacheKey("deploy window", 4, true, "openai", "gpt-4.1-mini", 0.2)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3, "a changed max_queries must invalidate the cache key")
}

func TestBuildRerankCacheKeyChangesWithCandidateSet(t *testing.T) {
	now := time.Now()
	a := RerankCandidateKey{ChunkID: uuid.New(), UpdatedAt: now}
	b := RerankCandidateKey{ChunkID: uuid.New(), UpdatedAt: now}

	k1, err := buildRerankCacheKey("deploy window", "cohere", "rerank-v3", []RerankCandidateKey{a, b})
	require.NoError(t, err)
	k2, err := buildRerankCacheKey("deploy window", "cohere", "rerank-v3", []RerankCandidateKey{a})
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestBuildCachedScoresRoundTrip(t *testing.T) {
	now := time.Now()
	a := RerankCandidateKey{ChunkID: uuid.New(), UpdatedAt: now}
	b := RerankCandidateKey{ChunkID: uuid.New(), UpdatedAt: now}

	payloadCandidates := []candidateSignature{
		{ChunkID: a.ChunkID, UpdatedAt: a.UpdatedAt.UTC().Format(time.RFC3339Nano)},
		{ChunkID: b.ChunkID, UpdatedAt: b.UpdatedAt.UTC().Format(time.RFC3339Nano)},
	}
	payloadScores := []float32{0.8, 0.3}

	scores, ok := buildCachedScores(payloadCandidates, payloadScores, []RerankCandidateKey{b, a})
	require.True(t, ok)
	assert.Equal(t, []float32{0.3, 0.8}, scores)
}

func TestBuildCachedScoresMissesOnUnknownCandidate(t *testing.T) {
	payloadCandidates := []candidateSignature{{ChunkID: uuid.New(), UpdatedAt: "x"}}
	_, ok := buildCachedScores(payloadCandidates, []float32{0.5}, []RerankCandidateKey{{ChunkID: uuid.New(), UpdatedAt: time.Now()}})
	assert.False(t, ok)
}

func TestCacheKeyPrefixTruncates(t *testing.T) {
	assert.Equal(t, "short", cacheKeyPrefix("short"))
	assert.Len(t, cacheKeyPrefix("0123456789abcdef"), 12)
}
