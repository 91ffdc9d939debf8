package writegate

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/elf/internal/config"
	"github.com/steveyegge/elf/internal/domain"
	"github.com/steveyegge/elf/internal/models"
	"github.com/steveyegge/elf/internal/providers"
	"github.com/steveyegge/elf/internal/relstore"
	"github.com/steveyegge/elf/internal/svcerr"
)

const confidenceEpsilon = 1e-4

// Gate bundles the collaborators add_note/add_event need: the relational store, the embedding
// provider, and configuration. Mirrors the shape of lib.rs's ElfService, generalized to Go's
// explicit-dependency-injection idiom rather than a struct of trait objects.
type Gate struct {
	Store     *relstore.Store
	Embedder  providers.Embedder
	Extractor providers.Extractor
	Config    *config.Config
	Now       Clock
}

// New builds a Gate with the real wall clock.
func New(store *relstore.Store, embedder providers.Embedder, extractor providers.Extractor, cfg *config.Config) *Gate {
	return &Gate{Store: store, Embedder: embedder, Extractor: extractor, Config: cfg, Now: time.Now}
}

// AddNote runs SPEC_FULL.md §4.5 end to end: per-note validation, dedup resolution, and the
// Add/Update/None transactional write, one note at a time (each note gets its own transaction,
// matching add_note.rs's per-note commit boundary rather than one transaction for the whole
// batch — a failure partway through a large batch does not roll back notes already committed).
func (g *Gate) AddNote(ctx context.Context, req AddNoteRequest) (*AddNoteResponse, error) {
	if len(req.Notes) == 0 {
		return nil, svcerr.InvalidRequest{Message: "notes must not be empty"}
	}
	if uint32(len(req.Notes)) > g.Config.Memory.MaxNotesPerAddEvent {
		return nil, svcerr.InvalidRequest{Message: "notes exceeds max_notes_per_add_event"}
	}

	resp := &AddNoteResponse{Results: make([]NoteResult, len(req.Notes))}
	for i, note := range req.Notes {
		result, err := g.addOneNote(ctx, req, i, note)
		if err != nil {
			return nil, err
		}
		resp.Results[i] = result
	}
	return resp, nil
}

func (g *Gate) addOneNote(ctx context.Context, req AddNoteRequest, idx int, note NoteInput) (NoteResult, error) {
	now := g.Now()

	if path := findCJKPath(idx, note); path != "" {
		return NoteResult{Op: NoteOpRejected, RejectCode: domain.RejectCJKCode}, nil
	}
	if err := validateStructuredFields(note, req.EvidenceMessages); err != nil {
		return NoteResult{Op: NoteOpRejected, RejectCode: domain.RejectStructuredInvalid}, nil
	}
	if code := domain.Writegate(note.Text, note.Type, note.Scope, g.Config); code != domain.RejectNoneCode {
		return NoteResult{Op: NoteOpRejected, RejectCode: code}, nil
	}

	tx, err := g.Store.BeginTx(ctx)
	if err != nil {
		return NoteResult{}, svcerr.Storage{Message: "begin add_note transaction", Cause: err}
	}
	defer tx.Rollback()

	vecs, err := g.Embedder.Embed(ctx, g.Config.Providers.Embedding, []string{note.Text})
	if err != nil {
		return NoteResult{}, svcerr.Provider{Message: "embed candidate note", Cause: err}
	}
	vec := vecs[0]
	embeddingVersion := providers.EmbeddingVersion(g.Config.Providers.Embedding)

	decision, err := resolveUpdate(
		ctx, tx, g.Store, req.TenantID, req.ProjectID, req.AgentID, string(note.Scope), string(note.Type),
		note.Key, vec, embeddingVersion, g.Config, now,
	)
	if err != nil {
		return NoteResult{}, err
	}

	var result NoteResult
	switch decision.kind {
	case decisionAdd:
		result, err = g.applyAdd(ctx, tx, req, note, decision.newID, embeddingVersion, vec, now)
	case decisionUpdate:
		result, err = g.applyUpdate(ctx, tx, req, note, decision.existingID, embeddingVersion, vec, now)
	default:
		result, err = g.applyNone(ctx, tx, req, note, decision.existingID, now)
	}
	if err != nil {
		return NoteResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return NoteResult{}, svcerr.Storage{Message: "commit add_note transaction", Cause: err}
	}
	return result, nil
}

func (g *Gate) applyAdd(
	ctx context.Context, tx *sql.Tx, req AddNoteRequest, note NoteInput, noteID uuid.UUID,
	embeddingVersion string, vec []float32, now time.Time,
) (NoteResult, error) {
	sourceRef := note.SourceRef
	if sourceRef == nil {
		sourceRef = json.RawMessage(`{}`)
	}
	n := &models.Note{
		NoteID: noteID, TenantID: req.TenantID, ProjectID: req.ProjectID, AgentID: req.AgentID,
		Scope: note.Scope, Type: note.Type, Key: note.Key, Text: note.Text,
		Importance: note.Importance, Confidence: note.Confidence, Status: models.NoteStatusActive,
		CreatedAt: now, UpdatedAt: now,
		ExpiresAt:        domain.ComputeExpiresAt(note.TTLDays, note.Type, g.Config, now),
		EmbeddingVersion: embeddingVersion, SourceRef: sourceRef,
	}
	if err := g.Store.InsertNote(ctx, tx, n); err != nil {
		return NoteResult{}, svcerr.Storage{Message: "insert note", Cause: err}
	}
	if err := g.Store.UpsertNoteEmbedding(ctx, tx, noteID, embeddingVersion, vec); err != nil {
		return NoteResult{}, svcerr.Storage{Message: "upsert note embedding", Cause: err}
	}
	if err := relstore.UpsertStructuredFields(ctx, tx, noteID, toModelStructured(note.Structured), now); err != nil {
		return NoteResult{}, svcerr.Storage{Message: "upsert structured fields", Cause: err}
	}
	if err := g.Store.InsertVersion(ctx, tx, relstore.InsertVersionArgs{
		NoteID: noteID, Op: models.VersionOpAdd, PrevSnapshot: nil,
		NewSnapshot: relstore.NoteSnapshot(n), Reason: "add_note", Actor: req.AgentID, TS: now,
	}); err != nil {
		return NoteResult{}, svcerr.Storage{Message: "insert version", Cause: err}
	}
	if err := g.Store.EnqueueOutbox(ctx, tx, noteID, models.OutboxOpUpsert, embeddingVersion); err != nil {
		return NoteResult{}, svcerr.Storage{Message: "enqueue outbox", Cause: err}
	}
	return NoteResult{NoteID: noteID, Op: NoteOpAdd, RejectCode: domain.RejectNoneCode}, nil
}

func (g *Gate) applyUpdate(
	ctx context.Context, tx *sql.Tx, req AddNoteRequest, note NoteInput, existingID uuid.UUID,
	embeddingVersion string, vec []float32, now time.Time,
) (NoteResult, error) {
	existing, err := g.Store.GetNoteForUpdate(ctx, tx, existingID, req.TenantID, req.ProjectID)
	if err != nil {
		return NoteResult{}, err
	}

	newExpiresAt := domain.ComputeExpiresAt(note.TTLDays, note.Type, g.Config, now)
	sourceRef := note.SourceRef
	if sourceRef == nil {
		sourceRef = json.RawMessage(`{}`)
	}

	if unchanged(existing, note, newExpiresAt, sourceRef) {
		return g.applyNone(ctx, tx, req, note, existingID, now)
	}

	prevSnapshot := relstore.NoteSnapshot(existing)
	existing.Text = note.Text
	existing.Importance = note.Importance
	existing.Confidence = note.Confidence
	existing.ExpiresAt = newExpiresAt
	existing.UpdatedAt = now
	existing.SourceRef = sourceRef

	if err := g.Store.UpdateNoteFields(ctx, tx, existing); err != nil {
		return NoteResult{}, svcerr.Storage{Message: "update note fields", Cause: err}
	}
	if err := g.Store.UpsertNoteEmbedding(ctx, tx, existingID, embeddingVersion, vec); err != nil {
		return NoteResult{}, svcerr.Storage{Message: "upsert note embedding", Cause: err}
	}
	if err := relstore.UpsertStructuredFields(ctx, tx, existingID, toModelStructured(note.Structured), now); err != nil {
		return NoteResult{}, svcerr.Storage{Message: "upsert structured fields", Cause: err}
	}
	if err := g.Store.InsertVersion(ctx, tx, relstore.InsertVersionArgs{
		NoteID: existingID, Op: models.VersionOpUpdate, PrevSnapshot: prevSnapshot,
		NewSnapshot: relstore.NoteSnapshot(existing), Reason: "add_note", Actor: req.AgentID, TS: now,
	}); err != nil {
		return NoteResult{}, svcerr.Storage{Message: "insert version", Cause: err}
	}
	if err := g.Store.EnqueueOutbox(ctx, tx, existingID, models.OutboxOpUpsert, embeddingVersion); err != nil {
		return NoteResult{}, svcerr.Storage{Message: "enqueue outbox", Cause: err}
	}
	return NoteResult{NoteID: existingID, Op: NoteOpUpdate, RejectCode: domain.RejectNoneCode}, nil
}

func (g *Gate) applyNone(
	ctx context.Context, tx *sql.Tx, req AddNoteRequest, note NoteInput, existingID uuid.UUID, now time.Time,
) (NoteResult, error) {
	if !note.Structured.IsEffectivelyEmpty() {
		if err := relstore.UpsertStructuredFields(ctx, tx, existingID, toModelStructured(note.Structured), now); err != nil {
			return NoteResult{}, svcerr.Storage{Message: "upsert structured fields", Cause: err}
		}
		existing, err := g.Store.GetNoteForUpdate(ctx, tx, existingID, req.TenantID, req.ProjectID)
		if err != nil {
			return NoteResult{}, err
		}
		if err := g.Store.EnqueueOutbox(ctx, tx, existingID, models.OutboxOpUpsert, existing.EmbeddingVersion); err != nil {
			return NoteResult{}, svcerr.Storage{Message: "enqueue outbox", Cause: err}
		}
	}
	return NoteResult{NoteID: existingID, Op: NoteOpNone, RejectCode: domain.RejectNoneCode}, nil
}

// unchanged reports whether an update candidate is byte/value-identical to the existing row,
// matching add_note.rs's short-circuit-to-None comparison: text and source_ref must match
// exactly, importance/confidence within a small epsilon (float round-tripping through pgvector
// encode/decode should never itself trigger a spurious update), and expires_at must resolve to
// the same instant (both nil, or both set and equal).
func unchanged(existing *models.Note, note NoteInput, newExpiresAt *time.Time, sourceRef json.RawMessage) bool {
	if existing.Text != note.Text {
		return false
	}
	if math.Abs(float64(existing.Importance-note.Importance)) > confidenceEpsilon {
		return false
	}
	if math.Abs(float64(existing.Confidence-note.Confidence)) > confidenceEpsilon {
		return false
	}
	if !expiresEqual(existing.ExpiresAt, newExpiresAt) {
		return false
	}
	if string(existing.SourceRef) != string(sourceRef) {
		return false
	}
	return true
}

func expiresEqual(a, b *time.Time) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.Equal(*b)
}

func toModelStructured(s *StructuredInput) *models.StructuredFields {
	if s.IsEffectivelyEmpty() {
		return nil
	}
	out := &models.StructuredFields{Summary: s.Summary, Concepts: s.Concepts}
	for _, f := range s.Facts {
		out.Facts = append(out.Facts, f.Text)
	}
	return out
}

// IsEffectivelyEmpty reports whether a structured input carries no usable content, mirroring
// models.StructuredFields.IsEffectivelyEmpty for the request-shaped type (nil-safe).
func (s *StructuredInput) IsEffectivelyEmpty() bool {
	if s == nil {
		return true
	}
	if s.Summary != nil && *s.Summary != "" {
		return false
	}
	return len(s.Facts) == 0 && len(s.Concepts) == 0
}
