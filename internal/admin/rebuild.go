// Package admin implements the operator-facing maintenance operation that isn't part of the
// request-serving hot path: rebuilding the vector store from the relational store of record.
// Grounded on original_source/packages/elf-service/src/admin.rs's rebuild_qdrant.
package admin

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/elf/internal/relstore"
	"github.com/steveyegge/elf/internal/vectorstore"
)

// Clock is swappable in tests; production callers use time.Now.
type Clock func() time.Time

// Rebuilder bundles the relational and vector stores rebuild_qdrant needs.
type Rebuilder struct {
	Store   *relstore.Store
	Vectors *vectorstore.Store
	Now     Clock
}

// New builds a Rebuilder with the real wall clock.
func New(store *relstore.Store, vectors *vectorstore.Store) *Rebuilder {
	return &Rebuilder{Store: store, Vectors: vectors, Now: time.Now}
}

// RebuildQdrant runs SPEC_FULL.md §4.15: stream every active, non-expired chunk/note/embedding
// join row from the relational store, and replay each into the vector store. A row with no
// embedding for its chunk's current embedding_version counts as missing rather than triggering a
// provider call (invariant #7: rebuild never re-embeds). A row whose persisted vector fails to
// parse is handed to vectorstore.Rebuild as a nil vector, which the same counting logic treats
// as missing rather than as a parse error, since a row this package cannot even read back is
// indistinguishable from one whose embedding never landed.
func (r *Rebuilder) RebuildQdrant(ctx context.Context) (vectorstore.RebuildReport, error) {
	rows, err := r.Store.RebuildRows(ctx, r.Now())
	if err != nil {
		return vectorstore.RebuildReport{}, err
	}

	chunks := make([]vectorstore.RebuildChunk, 0, len(rows))
	for _, row := range rows {
		chunk, ok := toRebuildChunk(row)
		if !ok {
			continue
		}
		chunks = append(chunks, chunk)
	}

	return vectorstore.Rebuild(ctx, r.Vectors, chunks)
}

func toRebuildChunk(row relstore.RebuildRow) (vectorstore.RebuildChunk, bool) {
	chunkID, err := uuid.Parse(row.ChunkID)
	if err != nil {
		return vectorstore.RebuildChunk{}, false
	}
	noteID, err := uuid.Parse(row.NoteID)
	if err != nil {
		return vectorstore.RebuildChunk{}, false
	}

	var vec []float32
	if row.VecText != nil {
		parsed, err := relstore.ParseVecLiteral(*row.VecText)
		if err == nil {
			vec = parsed
		}
	}

	return vectorstore.RebuildChunk{
		ChunkID: chunkID, ChunkIndex: row.ChunkIndex, ChunkText: row.ChunkText,
		NoteID: noteID, TenantID: row.TenantID, ProjectID: row.ProjectID, AgentID: row.AgentID,
		Scope: row.Scope, NoteType: row.NoteType, Key: row.Key, Status: row.Status,
		UpdatedAt: row.UpdatedAt, ExpiresAt: row.ExpiresAt, Importance: row.Importance,
		Confidence: row.Confidence, EmbeddingVersion: row.EmbeddingVersion, Vec: vec,
	}, true
}
