package relstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/elf/internal/models"
	"github.com/steveyegge/elf/internal/svcerr"
)

const noteColumns = `note_id, tenant_id, project_id, agent_id, scope, type, key, text, importance,
	confidence, status, created_at, updated_at, expires_at, embedding_version, source_ref,
	hit_count, last_hit_at`

func scanNote(row interface{ Scan(...any) error }) (*models.Note, error) {
	var n models.Note
	var sourceRef []byte
	if err := row.Scan(
		&n.NoteID, &n.TenantID, &n.ProjectID, &n.AgentID, &n.Scope, &n.Type, &n.Key, &n.Text,
		&n.Importance, &n.Confidence, &n.Status, &n.CreatedAt, &n.UpdatedAt, &n.ExpiresAt,
		&n.EmbeddingVersion, &sourceRef, &n.HitCount, &n.LastHitAt,
	); err != nil {
		return nil, err
	}
	if len(sourceRef) > 0 {
		n.SourceRef = json.RawMessage(sourceRef)
	}
	return &n, nil
}

// InsertNote inserts a new note row inside tx.
func (s *Store) InsertNote(ctx context.Context, tx *sql.Tx, n *models.Note) error {
	sourceRef := n.SourceRef
	if sourceRef == nil {
		sourceRef = json.RawMessage(`{}`)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO memory_notes (
			note_id, tenant_id, project_id, agent_id, scope, type, key, text, importance,
			confidence, status, created_at, updated_at, expires_at, embedding_version,
			source_ref, hit_count, last_hit_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		n.NoteID, n.TenantID, n.ProjectID, n.AgentID, n.Scope, n.Type, n.Key, n.Text,
		n.Importance, n.Confidence, n.Status, n.CreatedAt, n.UpdatedAt, n.ExpiresAt,
		n.EmbeddingVersion, []byte(sourceRef), n.HitCount, n.LastHitAt,
	)
	if err != nil {
		return fmt.Errorf("relstore: insert note: %w", err)
	}
	return nil
}

// GetNote fetches a note by id outside of any transaction, used by the outbox worker to load
// the current row for a claimed job.
func (s *Store) GetNote(ctx context.Context, noteID uuid.UUID) (*models.Note, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM memory_notes WHERE note_id = $1`, noteID)
	n, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, svcerr.NotFound{Message: "Note not found."}
	}
	if err != nil {
		return nil, fmt.Errorf("relstore: get note: %w", err)
	}
	return n, nil
}

// GetNoteForUpdate locks and returns a note row within tx, or svcerr.NotFound if it doesn't
// exist in this tenant/project. Used by update and delete, matching add_note/update.rs/
// delete.rs's own "SELECT ... FOR UPDATE" row-lock pattern.
func (s *Store) GetNoteForUpdate(
	ctx context.Context, tx *sql.Tx, noteID uuid.UUID, tenantID, projectID string,
) (*models.Note, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT `+noteColumns+`
		FROM memory_notes
		WHERE note_id = $1 AND tenant_id = $2 AND project_id = $3
		FOR UPDATE`,
		noteID, tenantID, projectID,
	)
	n, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, svcerr.NotFound{Message: "Note not found."}
	}
	if err != nil {
		return nil, fmt.Errorf("relstore: get note for update: %w", err)
	}
	return n, nil
}

// GetNoteByKey looks up the live dedup target for (tenant, project, agent, scope, type, key).
func (s *Store) GetNoteByKey(
	ctx context.Context, tx *sql.Tx, tenantID, projectID, agentID string,
	scope models.Scope, noteType models.NoteType, key string,
) (*models.Note, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT `+noteColumns+`
		FROM memory_notes
		WHERE tenant_id = $1 AND project_id = $2 AND agent_id = $3
			AND scope = $4 AND type = $5 AND key = $6 AND status = 'active'
		FOR UPDATE`,
		tenantID, projectID, agentID, scope, noteType, key,
	)
	n, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("relstore: get note by key: %w", err)
	}
	return n, nil
}

// UpdateNoteFields applies update.rs's mutable-field set (text/importance/confidence/
// expires_at/updated_at) to an existing row.
func (s *Store) UpdateNoteFields(ctx context.Context, tx *sql.Tx, n *models.Note) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE memory_notes
		SET text = $1, importance = $2, confidence = $3, updated_at = $4, expires_at = $5
		WHERE note_id = $6`,
		n.Text, n.Importance, n.Confidence, n.UpdatedAt, n.ExpiresAt, n.NoteID,
	)
	if err != nil {
		return fmt.Errorf("relstore: update note fields: %w", err)
	}
	return nil
}

// MarkNoteStatus sets status + updated_at, used by delete (status=deleted).
func (s *Store) MarkNoteStatus(
	ctx context.Context, tx *sql.Tx, noteID uuid.UUID, status models.NoteStatus, now time.Time,
) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE memory_notes SET status = $1, updated_at = $2 WHERE note_id = $3`,
		status, now, noteID,
	)
	if err != nil {
		return fmt.Errorf("relstore: mark note status: %w", err)
	}
	return nil
}

// TouchHit increments hit_count and sets last_hit_at for a batch of notes returned by search.
func (s *Store) TouchHit(ctx context.Context, noteIDs []uuid.UUID, now time.Time) error {
	if len(noteIDs) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE memory_notes SET hit_count = hit_count + 1, last_hit_at = $1 WHERE note_id = ANY($2)`,
		now, uuidArray(noteIDs),
	)
	if err != nil {
		return fmt.Errorf("relstore: touch hit: %w", err)
	}
	return nil
}

// ListFilter mirrors list.rs's ListRequest, minus tenant/project which the caller always
// supplies directly.
type ListFilter struct {
	AgentID *string
	Scope   *models.Scope
	Status  *string
	Type    *models.NoteType
}

// ListNotes runs list.rs's dynamically-built WHERE clause: scope filter (agent_private also
// constrains by agent_id), status filter (defaults to active, which also applies the
// not-yet-expired clause), and an optional type filter.
func (s *Store) ListNotes(
	ctx context.Context, tenantID, projectID string, f ListFilter, agentID string, now time.Time,
) ([]*models.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM memory_notes WHERE tenant_id = $1 AND project_id = $2`
	args := []any{tenantID, projectID}

	if f.Scope != nil {
		args = append(args, *f.Scope)
		query += fmt.Sprintf(" AND scope = $%d", len(args))
		if *f.Scope == models.ScopeAgentPrivate {
			args = append(args, agentID)
			query += fmt.Sprintf(" AND agent_id = $%d", len(args))
		}
	} else {
		args = append(args, models.ScopeAgentPrivate)
		query += fmt.Sprintf(" AND scope != $%d", len(args))
	}

	status := "active"
	if f.Status != nil && *f.Status != "" {
		status = *f.Status
	}
	args = append(args, status)
	query += fmt.Sprintf(" AND status = $%d", len(args))

	if status == "active" {
		args = append(args, now)
		query += fmt.Sprintf(" AND (expires_at IS NULL OR expires_at > $%d)", len(args))
	}

	if f.Type != nil {
		args = append(args, *f.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("relstore: list notes: %w", err)
	}
	defer rows.Close()

	var notes []*models.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("relstore: list notes scan: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func uuidArray(ids []uuid.UUID) string {
	out := "{"
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += id.String()
	}
	return out + "}"
}
