package relstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FindLiveKeyedNote looks up the add_note dedup fast path: an active, unexpired note matching
// (tenant, project, agent, scope, type, key). Grounded on resolve_update's first query in
// elf-service/src/lib.rs exactly.
func (s *Store) FindLiveKeyedNote(
	ctx context.Context, tx *sql.Tx, tenantID, projectID, agentID, scope, noteType, key string, now time.Time,
) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := tx.QueryRowContext(ctx, `
		SELECT note_id FROM memory_notes
		WHERE tenant_id = $1 AND project_id = $2 AND agent_id = $3 AND scope = $4
			AND type = $5 AND key = $6 AND status = 'active'
			AND (expires_at IS NULL OR expires_at > $7)
		LIMIT 1`,
		tenantID, projectID, agentID, scope, noteType, key, now,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("relstore: find live keyed note: %w", err)
	}
	return id, true, nil
}

// LiveNoteIDsByTypeFilter returns active, unexpired note IDs matching (tenant, project, agent,
// scope, type) — the dedup candidate set resolve_update's second query produces.
func (s *Store) LiveNoteIDsByTypeFilter(
	ctx context.Context, tx *sql.Tx, tenantID, projectID, agentID, scope, noteType string, now time.Time,
) ([]uuid.UUID, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT note_id FROM memory_notes
		WHERE tenant_id = $1 AND project_id = $2 AND agent_id = $3 AND scope = $4
			AND type = $5 AND status = 'active'
			AND (expires_at IS NULL OR expires_at > $6)`,
		tenantID, projectID, agentID, scope, noteType, now,
	)
	if err != nil {
		return nil, fmt.Errorf("relstore: live note ids by type filter: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("relstore: live note ids by type filter scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MostSimilarNote runs the pgvector cosine-similarity comparison against a candidate ID set
// for one embedding version, returning the single best (note_id, similarity) pair. Rows are
// walked in ascending note_id order (ORDER BY note_id) and only a strictly higher similarity
// replaces the current best, so ties go to the lowest note_id.
func (s *Store) MostSimilarNote(
	ctx context.Context, tx *sql.Tx, vec []float32, candidateIDs []uuid.UUID, embeddingVersion string,
) (noteID uuid.UUID, similarity float32, found bool, err error) {
	if len(candidateIDs) == 0 {
		return uuid.Nil, 0, false, nil
	}
	rows, err := tx.QueryContext(ctx, `
		SELECT note_id, (1 - (vec <=> $1::vector))::real AS similarity
		FROM note_embeddings
		WHERE note_id = ANY($2) AND embedding_version = $3
		ORDER BY note_id ASC`,
		vecLiteral(vec), uuidArray(candidateIDs), embeddingVersion,
	)
	if err != nil {
		return uuid.Nil, 0, false, fmt.Errorf("relstore: most similar note: %w", err)
	}
	defer rows.Close()

	var bestID uuid.UUID
	var bestScore float32
	has := false
	for rows.Next() {
		var id uuid.UUID
		var score float32
		if err := rows.Scan(&id, &score); err != nil {
			return uuid.Nil, 0, false, fmt.Errorf("relstore: most similar note scan: %w", err)
		}
		if !has || score > bestScore {
			bestID, bestScore, has = id, score, true
		}
	}
	if err := rows.Err(); err != nil {
		return uuid.Nil, 0, false, err
	}
	return bestID, bestScore, has, nil
}

// UpsertNoteEmbedding stores the whole-note embedding used for dedup similarity comparisons,
// distinct from the per-chunk embeddings used for search.
func (s *Store) UpsertNoteEmbedding(ctx context.Context, tx *sql.Tx, noteID uuid.UUID, embeddingVersion string, vec []float32) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO note_embeddings (note_id, embedding_version, vec)
		VALUES ($1,$2,$3)
		ON CONFLICT (note_id, embedding_version) DO UPDATE SET vec = EXCLUDED.vec`,
		noteID, embeddingVersion, vecLiteral(vec),
	)
	if err != nil {
		return fmt.Errorf("relstore: upsert note embedding: %w", err)
	}
	return nil
}
