package vectorstore

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitHostPort(t *testing.T) {
	host, port, err := splitHostPort("http://localhost:6334")
	require.NoError(t, err)
	assert.Equal(t, "localhost", host)
	assert.Equal(t, 6334, port)

	host, port, err = splitHostPort("http://qdrant")
	require.NoError(t, err)
	assert.Equal(t, "qdrant", host)
	assert.Equal(t, 6334, port)

	_, _, err = splitHostPort("://bad")
	assert.Error(t, err)
}

func TestChunkPayloadToQdrantRoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	key := "project.plan"
	p := ChunkPayload{
		NoteID: uuid.New().String(), ChunkIndex: 3, TenantID: "t1", ProjectID: "p1",
		AgentID: "agent-1", Scope: "project_shared", NoteType: "plan", Key: &key,
		Status: "active", UpdatedAt: now, Importance: 0.8, Confidence: 0.9,
		EmbeddingVersion: "v1",
	}
	m := p.toQdrant()
	assert.Equal(t, p.NoteID, m["note_id"])
	assert.Equal(t, int32(3), m["chunk_index"])
	assert.Equal(t, "project.plan", m["key"])
	assert.Equal(t, now.Format(time.RFC3339Nano), m["updated_at"])
	assert.Nil(t, m["expires_at"])
}

func TestRebuildTalliesMissingAndMismatchedRows(t *testing.T) {
	store := &Store{collection: "chunks", vectorDim: 4}
	rows := []RebuildChunk{
		{ChunkID: uuid.New(), Vec: nil},
		{ChunkID: uuid.New(), Vec: []float32{1, 2, 3}},
	}

	report, err := Rebuild(nil, store, rows)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), report.MissingVectorCount)
	assert.Equal(t, uint64(1), report.ErrorCount)
	assert.Equal(t, uint64(0), report.RebuiltCount)
}
