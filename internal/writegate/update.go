package writegate

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/elf/internal/domain"
	"github.com/steveyegge/elf/internal/models"
	"github.com/steveyegge/elf/internal/relstore"
	"github.com/steveyegge/elf/internal/svcerr"
)

const updateFieldEpsilon = 1e-6

// UpdateRequest mirrors update.rs's UpdateRequest (SPEC_FULL.md §4.13).
type UpdateRequest struct {
	TenantID   string
	ProjectID  string
	AgentID    string
	NoteID     uuid.UUID
	Text       *string
	Importance *float32
	Confidence *float32
	TTLDays    *int64
}

// UpdateResponse is update's output.
type UpdateResponse struct {
	NoteID     uuid.UUID
	Op         NoteOp
	RejectCode domain.RejectCode
}

// Update runs SPEC_FULL.md §4.13: select-for-update, ownership masking, a re-run of the
// writegate on changed text, epsilon-tolerant change detection, and a no-op short circuit when
// nothing actually changed.
func (g *Gate) Update(ctx context.Context, req UpdateRequest) (*UpdateResponse, error) {
	now := g.Now()

	tx, err := g.Store.BeginTx(ctx)
	if err != nil {
		return nil, svcerr.Storage{Message: "begin update transaction", Cause: err}
	}
	defer tx.Rollback()

	existing, err := g.Store.GetNoteForUpdate(ctx, tx, req.NoteID, req.TenantID, req.ProjectID)
	if err != nil {
		if _, ok := err.(svcerr.NotFound); ok {
			return nil, svcerr.InvalidRequest{Message: "Note not found."}
		}
		return nil, err
	}
	if existing.Scope == models.ScopeAgentPrivate && existing.AgentID != req.AgentID {
		return nil, svcerr.InvalidRequest{Message: "Note not found."}
	}

	newText := existing.Text
	if req.Text != nil {
		newText = *req.Text
	}
	if req.Text != nil && *req.Text != existing.Text {
		if code := domain.Writegate(*req.Text, existing.Type, existing.Scope, g.Config); code != domain.RejectNoneCode {
			return &UpdateResponse{NoteID: req.NoteID, Op: NoteOpRejected, RejectCode: code}, nil
		}
	}

	newImportance := existing.Importance
	if req.Importance != nil {
		newImportance = *req.Importance
	}
	newConfidence := existing.Confidence
	if req.Confidence != nil {
		newConfidence = *req.Confidence
	}
	newExpiresAt := existing.ExpiresAt
	if req.TTLDays != nil {
		newExpiresAt = domain.ComputeExpiresAt(req.TTLDays, existing.Type, g.Config, now)
	}

	if !updateChanged(existing, newText, newImportance, newConfidence, newExpiresAt) {
		if err := tx.Commit(); err != nil {
			return nil, svcerr.Storage{Message: "commit no-op update", Cause: err}
		}
		return &UpdateResponse{NoteID: req.NoteID, Op: NoteOpNone, RejectCode: domain.RejectNoneCode}, nil
	}

	prevSnapshot := relstore.NoteSnapshot(existing)
	existing.Text = newText
	existing.Importance = newImportance
	existing.Confidence = newConfidence
	existing.ExpiresAt = newExpiresAt
	existing.UpdatedAt = now

	if err := g.Store.UpdateNoteFields(ctx, tx, existing); err != nil {
		return nil, svcerr.Storage{Message: "update note fields", Cause: err}
	}
	if err := g.Store.InsertVersion(ctx, tx, relstore.InsertVersionArgs{
		NoteID: req.NoteID, Op: models.VersionOpUpdate, PrevSnapshot: prevSnapshot,
		NewSnapshot: relstore.NoteSnapshot(existing), Reason: "update", Actor: req.AgentID, TS: now,
	}); err != nil {
		return nil, svcerr.Storage{Message: "insert version", Cause: err}
	}
	if err := g.Store.EnqueueOutbox(ctx, tx, req.NoteID, models.OutboxOpUpsert, existing.EmbeddingVersion); err != nil {
		return nil, svcerr.Storage{Message: "enqueue outbox", Cause: err}
	}
	if err := tx.Commit(); err != nil {
		return nil, svcerr.Storage{Message: "commit update transaction", Cause: err}
	}
	return &UpdateResponse{NoteID: req.NoteID, Op: NoteOpUpdate, RejectCode: domain.RejectNoneCode}, nil
}

func updateChanged(existing *models.Note, text string, importance, confidence float32, expiresAt *time.Time) bool {
	if existing.Text != text {
		return true
	}
	if math.Abs(float64(existing.Importance-importance)) > updateFieldEpsilon {
		return true
	}
	if math.Abs(float64(existing.Confidence-confidence)) > updateFieldEpsilon {
		return true
	}
	return !expiresEqual(existing.ExpiresAt, expiresAt)
}
