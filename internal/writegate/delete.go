package writegate

import (
	"context"

	"github.com/google/uuid"

	"github.com/steveyegge/elf/internal/config"
	"github.com/steveyegge/elf/internal/models"
	"github.com/steveyegge/elf/internal/relstore"
	"github.com/steveyegge/elf/internal/svcerr"
)

// DeleteRequest mirrors delete.rs's DeleteRequest (SPEC_FULL.md §4.14).
type DeleteRequest struct {
	TenantID  string
	ProjectID string
	AgentID   string
	NoteID    uuid.UUID
}

// DeleteResponse is delete's output.
type DeleteResponse struct {
	NoteID uuid.UUID
	Op     NoteOp
}

// Delete runs SPEC_FULL.md §4.14: the same select-for-update + ownership masking as Update,
// then a scope_allowed/write_allowed check distinct from that masking, then an idempotent
// soft-delete that leaves vector cleanup to the outbox job's own status observation.
func (g *Gate) Delete(ctx context.Context, req DeleteRequest) (*DeleteResponse, error) {
	now := g.Now()

	tx, err := g.Store.BeginTx(ctx)
	if err != nil {
		return nil, svcerr.Storage{Message: "begin delete transaction", Cause: err}
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

	if !scopeAllowed(existing.Scope, g.Config.Scopes.Allowed) || !scopeWriteAllowed(existing.Scope, g.Config) {
		return nil, svcerr.ScopeDenied{Message: "scope is not writable"}
	}

	if existing.Status == models.NoteStatusDeleted {
		if err := tx.Commit(); err != nil {
			return nil, svcerr.Storage{Message: "commit no-op delete", Cause: err}
		}
		return &DeleteResponse{NoteID: req.NoteID, Op: NoteOpNone}, nil
	}

	prevSnapshot := relstore.NoteSnapshot(existing)
	if err := g.Store.MarkNoteStatus(ctx, tx, req.NoteID, models.NoteStatusDeleted, now); err != nil {
		return nil, svcerr.Storage{Message: "mark note deleted", Cause: err}
	}
	existing.Status = models.NoteStatusDeleted
	existing.UpdatedAt = now

	if err := g.Store.InsertVersion(ctx, tx, relstore.InsertVersionArgs{
		NoteID: req.NoteID, Op: models.VersionOpDelete, PrevSnapshot: prevSnapshot,
		NewSnapshot: relstore.NoteSnapshot(existing), Reason: "delete", Actor: req.AgentID, TS: now,
	}); err != nil {
		return nil, svcerr.Storage{Message: "insert version", Cause: err}
	}
	// The outbox job itself observes status = deleted and performs the vector deletion
	// (SPEC_FULL.md §4.7); enqueueing UPSERT rather than DELETE keeps one job kind driving both
	// paths.
	if err := g.Store.EnqueueOutbox(ctx, tx, req.NoteID, models.OutboxOpUpsert, existing.EmbeddingVersion); err != nil {
		return nil, svcerr.Storage{Message: "enqueue outbox", Cause: err}
	}
	if err := tx.Commit(); err != nil {
		return nil, svcerr.Storage{Message: "commit delete transaction", Cause: err}
	}
	return &DeleteResponse{NoteID: req.NoteID, Op: NoteOpDelete}, nil
}

// scopeWriteAllowed checks scopes.write_allowed in isolation from scopes.allowed, so delete can
// surface the two failure modes §4.14 distinguishes (scope_allowed vs write_allowed) under one
// ScopeDenied error.
func scopeWriteAllowed(scope models.Scope, cfg *config.Config) bool {
	switch scope {
	case models.ScopeAgentPrivate:
		return cfg.Scopes.WriteAllowed.AgentPrivate
	case models.ScopeProjectShared:
		return cfg.Scopes.WriteAllowed.ProjectShared
	case models.ScopeOrgShared:
		return cfg.Scopes.WriteAllowed.OrgShared
	default:
		return false
	}
}
