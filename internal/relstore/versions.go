package relstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/elf/internal/idgen"
	"github.com/steveyegge/elf/internal/models"
)

// InsertVersionArgs mirrors the Rust service's InsertVersionArgs struct used by add_note,
// update, and delete to record before/after snapshots.
type InsertVersionArgs struct {
	NoteID       uuid.UUID
	Op           models.VersionOp
	PrevSnapshot json.RawMessage
	NewSnapshot  json.RawMessage
	Reason       string
	Actor        string
	TS           time.Time
}

// InsertVersion records one row in memory_versions inside tx.
func (s *Store) InsertVersion(ctx context.Context, tx *sql.Tx, args InsertVersionArgs) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO memory_versions (
			version_id, note_id, op, prev_snapshot, new_snapshot, reason, actor, ts
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		idgen.New(), args.NoteID, args.Op, nullableJSON(args.PrevSnapshot),
		nullableJSON(args.NewSnapshot), args.Reason, args.Actor, args.TS,
	)
	if err != nil {
		return fmt.Errorf("relstore: insert version: %w", err)
	}
	return nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

// NoteSnapshot serializes the full audit-relevant field set for version history, mirroring
// note_snapshot in the original service exactly (tenant/project/agent scoping plus hit-count
// bookkeeping travel with every snapshot, not just the fields a given mutation touched).
func NoteSnapshot(n *models.Note) json.RawMessage {
	snap, _ := json.Marshal(struct {
		NoteID     uuid.UUID  `json:"note_id"`
		TenantID   string     `json:"tenant_id"`
		ProjectID  string     `json:"project_id"`
		AgentID    string     `json:"agent_id"`
		Type       string     `json:"type"`
		Scope      string     `json:"scope"`
		Key        *string    `json:"key,omitempty"`
		Text       string     `json:"text"`
		Importance float32    `json:"importance"`
		Confidence float32    `json:"confidence"`
		Status     string     `json:"status"`
		CreatedAt  time.Time  `json:"created_at"`
		ExpiresAt  *time.Time `json:"expires_at,omitempty"`
		HitCount   int64      `json:"hit_count"`
		LastHitAt  *time.Time `json:"last_hit_at,omitempty"`
	}{
		NoteID: n.NoteID, TenantID: n.TenantID, ProjectID: n.ProjectID, AgentID: n.AgentID,
		Type: string(n.Type), Scope: string(n.Scope), Key: n.Key,
		Text: n.Text, Importance: n.Importance, Confidence: n.Confidence,
		Status: string(n.Status), CreatedAt: n.CreatedAt, ExpiresAt: n.ExpiresAt,
		HitCount: n.HitCount, LastHitAt: n.LastHitAt,
	})
	return snap
}
