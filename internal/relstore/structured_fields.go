package relstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/elf/internal/idgen"
	"github.com/steveyegge/elf/internal/models"
)

// UpsertStructuredFields replaces each present field kind (summary/fact/concept) wholesale,
// grounded exactly on structured_fields.rs's upsert_structured_fields_tx/replace_kind: delete
// then reinsert, skipping blank items.
func UpsertStructuredFields(ctx context.Context, tx *sql.Tx, noteID uuid.UUID, s *models.StructuredFields, now time.Time) error {
	if s == nil {
		return nil
	}
	if s.Summary != nil {
		if err := replaceFieldKind(ctx, tx, noteID, "summary", []string{*s.Summary}, now); err != nil {
			return err
		}
	}
	if s.Facts != nil {
		if err := replaceFieldKind(ctx, tx, noteID, "fact", s.Facts, now); err != nil {
			return err
		}
	}
	if s.Concepts != nil {
		if err := replaceFieldKind(ctx, tx, noteID, "concept", s.Concepts, now); err != nil {
			return err
		}
	}
	return nil
}

func replaceFieldKind(ctx context.Context, tx *sql.Tx, noteID uuid.UUID, kind string, items []string, now time.Time) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM memory_note_fields WHERE note_id = $1 AND field_kind = $2`, noteID, kind,
	); err != nil {
		return fmt.Errorf("relstore: delete structured field %s: %w", kind, err)
	}

	for idx, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO memory_note_fields (field_id, note_id, field_kind, item_index, text, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			idgen.New(), noteID, kind, idx, trimmed, now, now,
		); err != nil {
			return fmt.Errorf("relstore: insert structured field %s[%d]: %w", kind, idx, err)
		}
	}
	return nil
}

// ListFieldIDs returns the field_id/text pairs currently stored for noteID, ordered by
// field_kind then item_index, for the outbox worker to embed
// and persist as denormalized field embeddings.
func ListFieldIDs(ctx context.Context, tx *sql.Tx, noteID uuid.UUID) ([]uuid.UUID, []string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT field_id, text FROM memory_note_fields WHERE note_id = $1 ORDER BY field_kind ASC, item_index ASC`,
		noteID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("relstore: list field ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	var texts []string
	for rows.Next() {
		var id uuid.UUID
		var text string
		if err := rows.Scan(&id, &text); err != nil {
			return nil, nil, fmt.Errorf("relstore: scan field id: %w", err)
		}
		ids = append(ids, id)
		texts = append(texts, text)
	}
	return ids, texts, rows.Err()
}

// UpsertFieldEmbedding stores the dense embedding for one structured-field row, keeping the
// denormalized facts/concepts/summary index current for the structured-field retrieval source
// (SPEC_FULL.md §4.9).
func (s *Store) UpsertFieldEmbedding(ctx context.Context, fieldID uuid.UUID, embeddingVersion string, vec []float32) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO note_field_embeddings (field_id, embedding_version, vec)
		VALUES ($1,$2,$3)
		ON CONFLICT (field_id, embedding_version) DO UPDATE SET vec = EXCLUDED.vec`,
		fieldID, embeddingVersion, vecLiteral(vec),
	)
	if err != nil {
		return fmt.Errorf("relstore: upsert field embedding: %w", err)
	}
	return nil
}

// FetchStructuredFields loads and reassembles the structured fields for a set of notes,
// grounded exactly on structured_fields.rs's fetch_structured_fields (first non-blank summary
// wins, facts/concepts preserve item_index order, empty results are dropped).
func (s *Store) FetchStructuredFields(ctx context.Context, noteIDs []uuid.UUID) (map[uuid.UUID]*models.StructuredFields, error) {
	out := map[uuid.UUID]*models.StructuredFields{}
	if len(noteIDs) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT note_id, field_kind, item_index, text
		FROM memory_note_fields
		WHERE note_id = ANY($1)
		ORDER BY note_id ASC, field_kind ASC, item_index ASC`,
		uuidArray(noteIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("relstore: fetch structured fields: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var noteID uuid.UUID
		var kind string
		var itemIndex int
		var text string
		if err := rows.Scan(&noteID, &kind, &itemIndex, &text); err != nil {
			return nil, fmt.Errorf("relstore: scan structured field: %w", err)
		}
		entry := out[noteID]
		if entry == nil {
			entry = &models.StructuredFields{}
			out[noteID] = entry
		}
		trimmed := strings.TrimSpace(text)
		switch kind {
		case "summary":
			if entry.Summary == nil && trimmed != "" {
				v := text
				entry.Summary = &v
			}
		case "fact":
			entry.Facts = append(entry.Facts, text)
		case "concept":
			entry.Concepts = append(entry.Concepts, text)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("relstore: iterate structured fields: %w", err)
	}

	for id, entry := range out {
		if entry.IsEffectivelyEmpty() {
			delete(out, id)
		}
	}
	return out, nil
}
