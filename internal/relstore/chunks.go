package relstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/steveyegge/elf/internal/models"
)

// InsertChunks replaces a note's chunk rows inside tx: delete-then-insert, since chunk
// boundaries are always recomputed wholesale on add/update rather than diffed.
func (s *Store) InsertChunks(ctx context.Context, tx *sql.Tx, chunks []models.NoteChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM memory_note_chunks WHERE note_id = $1`, chunks[0].NoteID,
	); err != nil {
		return fmt.Errorf("relstore: insert chunks: delete prior: %w", err)
	}
	for _, c := range chunks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO memory_note_chunks (
				chunk_id, note_id, chunk_index, start_offset, end_offset, text, embedding_version
			) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			c.ChunkID, c.NoteID, c.ChunkIndex, c.StartOffset, c.EndOffset, c.Text, c.EmbeddingVersion,
		); err != nil {
			return fmt.Errorf("relstore: insert chunks: %w", err)
		}
	}
	return nil
}

// UpsertChunkEmbedding stores the dense embedding for one chunk, written by the outbox worker;
// admin rebuild reads it back through RebuildRows.
func (s *Store) UpsertChunkEmbedding(ctx context.Context, chunkID uuid.UUID, embeddingVersion string, vec []float32) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO note_chunk_embeddings (chunk_id, embedding_version, vec)
		VALUES ($1,$2,$3)
		ON CONFLICT (chunk_id, embedding_version) DO UPDATE SET vec = EXCLUDED.vec`,
		chunkID, embeddingVersion, vecLiteral(vec),
	)
	if err != nil {
		return fmt.Errorf("relstore: upsert chunk embedding: %w", err)
	}
	return nil
}

func vecLiteral(vec []float32) string {
	out := "["
	for i, v := range vec {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%g", v)
	}
	return out + "]"
}

// ParseVecLiteral parses a pgvector text cast ("[0.1,0.2,0.3]", cast via vec::text) back into
// float32s, the inverse of vecLiteral. Used by admin rebuild to recover RebuildRow.VecText
// before handing it to the vector store, since database/sql has no native pgvector type.
func ParseVecLiteral(text string) ([]float32, error) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "[")
	trimmed = strings.TrimSuffix(trimmed, "]")
	if trimmed == "" {
		return nil, nil
	}
	parts := strings.Split(trimmed, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("relstore: parse vec literal: %w", err)
		}
		out[i] = float32(v)
	}
	return out, nil
}
