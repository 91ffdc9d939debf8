package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/elf/internal/idgen"
	"github.com/steveyegge/elf/internal/models"
	"github.com/steveyegge/elf/internal/relstore"
	"github.com/steveyegge/elf/internal/vectorstore"
)

// processJob implements SPEC_FULL.md §4.7's job-execution step: delete-on-deleted-or-DELETE-op,
// otherwise re-chunk, re-embed, and re-index the note's chunks and its denormalized structured
// fields, then mark the job DONE. Returning a non-nil error leaves the job for fail() to
// reschedule with backoff; the job itself is marked DONE only on full success.
func (w *Worker) processJob(ctx context.Context, job *models.IndexingOutboxEntry, now time.Time) error {
	note, err := w.Store.GetNote(ctx, job.NoteID)
	if err != nil {
		return fmt.Errorf("outbox: load note: %w", err)
	}

	if note.Status == models.NoteStatusDeleted || job.Op == models.OutboxOpDelete {
		if err := w.Vectors.DeleteNoteChunks(ctx, job.NoteID); err != nil {
			return fmt.Errorf("outbox: delete vector points: %w", err)
		}
		return w.Store.MarkOutboxDone(ctx, job.OutboxID, now)
	}

	if err := w.indexNote(ctx, note, job.EmbeddingVersion, now); err != nil {
		return err
	}
	return w.Store.MarkOutboxDone(ctx, job.OutboxID, now)
}

// indexNote splits the note's text into chunks, embeds them in one batch call, persists chunk
// rows and chunk-embedding rows, upserts one Qdrant point per chunk, and refreshes the
// structured-field embeddings so the structured-field retrieval source stays current.
func (w *Worker) indexNote(ctx context.Context, note *models.Note, embeddingVersion string, now time.Time) error {
	chunks := w.Chunker.Split(note.Text)
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embedCfg := w.Config.Providers.Embedding
	vecs, err := w.Embedder.Embed(ctx, embedCfg, texts)
	if err != nil {
		return fmt.Errorf("outbox: embed chunks: %w", err)
	}
	if len(vecs) != len(chunks) {
		return fmt.Errorf("outbox: embedder returned %d vectors for %d chunks", len(vecs), len(chunks))
	}

	noteChunks := make([]models.NoteChunk, len(chunks))
	for i, c := range chunks {
		noteChunks[i] = models.NoteChunk{
			ChunkID:          idgen.New(),
			NoteID:           note.NoteID,
			ChunkIndex:       c.ChunkIndex,
			StartOffset:      int32(c.StartOffset),
			EndOffset:        int32(c.EndOffset),
			Text:             c.Text,
			EmbeddingVersion: embeddingVersion,
			CreatedAt:        now,
		}
	}

	tx, err := w.Store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("outbox: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := w.Store.InsertChunks(ctx, tx, noteChunks); err != nil {
		return fmt.Errorf("outbox: insert chunks: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("outbox: commit chunks: %w", err)
	}

	basePayload := chunkPayload(note, embeddingVersion)
	for i, c := range noteChunks {
		if err := w.Store.UpsertChunkEmbedding(ctx, c.ChunkID, embeddingVersion, vecs[i]); err != nil {
			return fmt.Errorf("outbox: upsert chunk embedding: %w", err)
		}
		payload := basePayload
		payload.ChunkIndex = c.ChunkIndex
		if err := w.Vectors.UpsertChunk(ctx, c.ChunkID, vecs[i], c.Text, payload); err != nil {
			return fmt.Errorf("outbox: upsert chunk point: %w", err)
		}
	}

	return w.reembedStructuredFields(ctx, note.NoteID, embeddingVersion)
}

// reembedStructuredFields keeps note_field_embeddings current for notes carrying structured
// fields, so the structured-field retrieval source (SPEC_FULL.md §4.9) searches against the
// latest facts/concepts/summary text rather than a stale vector left from a prior version.
func (w *Worker) reembedStructuredFields(ctx context.Context, noteID uuid.UUID, embeddingVersion string) error {
	tx, err := w.Store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("outbox: begin tx for field list: %w", err)
	}
	fieldIDs, texts, err := relstore.ListFieldIDs(ctx, tx, noteID)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("outbox: list fields: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("outbox: commit field list: %w", err)
	}
	if len(fieldIDs) == 0 {
		return nil
	}

	vecs, err := w.Embedder.Embed(ctx, w.Config.Providers.Embedding, texts)
	if err != nil {
		return fmt.Errorf("outbox: embed structured fields: %w", err)
	}
	if len(vecs) != len(fieldIDs) {
		return fmt.Errorf("outbox: embedder returned %d vectors for %d fields", len(vecs), len(fieldIDs))
	}
	for i, fieldID := range fieldIDs {
		if err := w.Store.UpsertFieldEmbedding(ctx, fieldID, embeddingVersion, vecs[i]); err != nil {
			return fmt.Errorf("outbox: upsert field embedding: %w", err)
		}
	}
	return nil
}

func chunkPayload(note *models.Note, embeddingVersion string) vectorstore.ChunkPayload {
	return vectorstore.ChunkPayload{
		NoteID:           note.NoteID.String(),
		TenantID:         note.TenantID,
		ProjectID:        note.ProjectID,
		AgentID:          note.AgentID,
		Scope:            string(note.Scope),
		NoteType:         string(note.Type),
		Key:              note.Key,
		Status:           string(note.Status),
		UpdatedAt:        note.UpdatedAt,
		ExpiresAt:        note.ExpiresAt,
		Importance:       note.Importance,
		Confidence:       note.Confidence,
		EmbeddingVersion: embeddingVersion,
	}
}
