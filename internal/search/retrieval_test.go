package search

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/steveyegge/elf/internal/config"
	"github.com/steveyegge/elf/internal/relstore"
)

func TestRankNormalize(t *testing.T) {
	assert.Equal(t, float32(1), rankNormalize(1, 1))
	assert.Equal(t, float32(1), rankNormalize(1, 10))
	assert.Equal(t, float32(0), rankNormalize(10, 10))
	assert.InDelta(t, float32(0.5), rankNormalize(5, 9), 1e-6)
	assert.Equal(t, float32(0), rankNormalize(0, 10))
}

func TestMergeRetrievalCandidatesCombinesWeightedSources(t *testing.T) {
	chunkA := uuid.New()
	chunkB := uuid.New()
	noteA := uuid.New()
	noteB := uuid.New()

	sources := map[RetrievalSourceKind][]ChunkCandidate{
		SourceFusion: {
			{ChunkID: chunkA, NoteID: noteA, Score: 0.9},
			{ChunkID: chunkB, NoteID: noteB, Score: 0.8},
		},
		SourceStructuredField: {
			{ChunkID: chunkA, NoteID: noteA, Score: 0.7},
		},
	}
	policy := retrievalSourcesPolicy{fusionWeight: 0.6, structuredFieldWeight: 0.4, fusionPriority: 0, structuredFieldPriority: 1}

	merged := mergeRetrievalCandidates(sources, policy, 10)
	assert.Len(t, merged, 2)
	assert.Equal(t, chunkA, merged[0].ChunkID, "chunk hit by both sources should rank first")
	assert.Equal(t, 2, len(merged[0].SourceRanks))
}

func TestMergeRetrievalCandidatesTruncatesToCandidateK(t *testing.T) {
	sources := map[RetrievalSourceKind][]ChunkCandidate{
		SourceFusion: {
			{ChunkID: uuid.New(), NoteID: uuid.New(), Score: 0.9},
			{ChunkID: uuid.New(), NoteID: uuid.New(), Score: 0.8},
			{ChunkID: uuid.New(), NoteID: uuid.New(), Score: 0.7},
		},
	}
	policy := retrievalSourcesPolicy{fusionWeight: 1}
	merged := mergeRetrievalCandidates(sources, policy, 2)
	assert.Len(t, merged, 2)
}

func TestMergeRetrievalCandidatesRanksByListPositionNotScore(t *testing.T) {
	low := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	high := uuid.MustParse("ffffffff-ffff-ffff-ffff-ffffffffffff")
	sources := map[RetrievalSourceKind][]ChunkCandidate{
		SourceFusion: {
			{ChunkID: high, NoteID: uuid.New(), Score: 0.5},
			{ChunkID: low, NoteID: uuid.New(), Score: 0.5},
		},
	}
	policy := retrievalSourcesPolicy{fusionWeight: 1}
	merged := mergeRetrievalCandidates(sources, policy, 10)
	assert.Equal(t, high, merged[0].ChunkID, "merge ranks by list position, so the first-listed chunk wins despite equal scores and a higher chunk_id")
}

func TestStitchSnippetJoinsNeighborWindow(t *testing.T) {
	noteID := uuid.New()
	chunks := map[relstore.ChunkTextKey]string{
		{NoteID: noteID, ChunkIndex: 0}: "first. ",
		{NoteID: noteID, ChunkIndex: 1}: "second. ",
		{NoteID: noteID, ChunkIndex: 2}: "third.",
	}
	assert.Equal(t, "first. second. third.", stitchSnippet(noteID, 1, chunks))
	assert.Equal(t, "first. second.", stitchSnippet(noteID, 0, chunks))
}

func TestRetrievalWeightForRankPiecewise(t *testing.T) {
	segments := []config.RankingBlendSegment{
		{MaxRetrievalRank: 3, RetrievalWeight: 0.9},
		{MaxRetrievalRank: 10, RetrievalWeight: 0.5},
	}
	assert.Equal(t, float32(0.9), retrievalWeightForRank(segments, 1))
	assert.Equal(t, float32(0.9), retrievalWeightForRank(segments, 3))
	assert.Equal(t, float32(0.5), retrievalWeightForRank(segments, 4))
	assert.Equal(t, float32(0.5), retrievalWeightForRank(segments, 100), "beyond every threshold falls through to the last segment")
	assert.Equal(t, float32(0.5), retrievalWeightForRank(nil, 1), "no configured segments defaults to an even split")
}
