package relstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/steveyegge/elf/internal/models"
)

// InsertIngestDecision records the outcome of the policy filter step (SPEC_FULL.md §4.6 step
// 5), the Go-native entity resolving the Memory.policy.rules open question.
func (s *Store) InsertIngestDecision(ctx context.Context, tx *sql.Tx, d *models.IngestDecision) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ingest_decisions (
			decision_id, note_id, tenant_id, project_id, agent_id, outcome,
			matched_policy_rule, confidence, importance, ts
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		d.DecisionID, d.NoteID, d.TenantID, d.ProjectID, d.AgentID, d.Outcome,
		d.MatchedPolicyRule, d.Confidence, d.Importance, d.TS,
	)
	if err != nil {
		return fmt.Errorf("relstore: insert ingest decision: %w", err)
	}
	return nil
}

// RebuildRow is one chunk+note+embedding join row used to repopulate Qdrant from the
// relational store, grounded on admin.rs's RebuildRow query exactly.
type RebuildRow struct {
	ChunkID          string
	ChunkIndex       int32
	StartOffset      int32
	EndOffset        int32
	ChunkText        string
	NoteID           string
	TenantID         string
	ProjectID        string
	AgentID          string
	Scope            string
	NoteType         string
	Key              *string
	Status           string
	UpdatedAt        time.Time
	ExpiresAt        *time.Time
	Importance       float32
	Confidence       float32
	EmbeddingVersion string
	VecText          *string
}

// RebuildRows loads the active-note chunk/embedding join for admin rebuild.
func (s *Store) RebuildRows(ctx context.Context, now time.Time) ([]RebuildRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			c.chunk_id, c.chunk_index, c.start_offset, c.end_offset, c.text AS chunk_text,
			n.note_id, n.tenant_id, n.project_id, n.agent_id, n.scope, n.type AS note_type,
			n.key, n.status, n.updated_at, n.expires_at,
			n.importance, n.confidence, c.embedding_version, e.vec::text AS vec_text
		FROM memory_note_chunks c
		JOIN memory_notes n ON n.note_id = c.note_id
		LEFT JOIN note_chunk_embeddings e
			ON e.chunk_id = c.chunk_id AND e.embedding_version = c.embedding_version
		WHERE n.status = 'active' AND (n.expires_at IS NULL OR n.expires_at > $1)`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("relstore: rebuild rows: %w", err)
	}
	defer rows.Close()

	var out []RebuildRow
	for rows.Next() {
		var r RebuildRow
		if err := rows.Scan(
			&r.ChunkID, &r.ChunkIndex, &r.StartOffset, &r.EndOffset, &r.ChunkText,
			&r.NoteID, &r.TenantID, &r.ProjectID, &r.AgentID, &r.Scope, &r.NoteType,
			&r.Key, &r.Status, &r.UpdatedAt, &r.ExpiresAt,
			&r.Importance, &r.Confidence, &r.EmbeddingVersion, &r.VecText,
		); err != nil {
			return nil, fmt.Errorf("relstore: rebuild rows scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// BeginTx starts a transaction for operations (add_note, update, delete) that need multiple
// statements to commit atomically.
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}
