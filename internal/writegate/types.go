// Package writegate is the write-path orchestrator: add_note's per-note validation and dedup
// resolution (SPEC_FULL.md §4.5), and add_event's extraction/evidence-binding/policy-filter
// pipeline that feeds into it (§4.6). Grounded on
// original_source/packages/elf-service/src/add_note.rs and
// original_source/crates/elf-service/src/lib.rs (ElfService, resolve_update, insert_version,
// enqueue_outbox_tx, note_snapshot).
package writegate

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/elf/internal/domain"
	"github.com/steveyegge/elf/internal/models"
)

// NoteOp is the per-note outcome of add_note, distinct from models.VersionOp: it additionally
// covers the no-change and rejected cases that never reach the version table.
type NoteOp string

const (
	NoteOpAdd      NoteOp = "ADD"
	NoteOpUpdate   NoteOp = "UPDATE"
	NoteOpDelete   NoteOp = "DELETE"
	NoteOpNone     NoteOp = "NONE"
	NoteOpRejected NoteOp = "REJECTED"
)

// FactInput is one structured fact plus the optional evidence quote it must be bound to.
type FactInput struct {
	Text          string
	EvidenceQuote *string
}

// StructuredInput is the request-shaped structured-field payload, distinct from
// models.StructuredFields (the persisted shape) because facts here still carry their evidence
// quote for binding validation.
type StructuredInput struct {
	Summary  *string
	Facts    []FactInput
	Concepts []string
}

// NoteInput is one note within an add_note request.
type NoteInput struct {
	Scope      models.Scope
	Type       models.NoteType
	Key        *string
	Text       string
	Importance float32
	Confidence float32
	TTLDays    *int64
	SourceRef  json.RawMessage
	Structured *StructuredInput
}

// AddNoteRequest is the add_note operation's input: a batch of notes to write for one
// (tenant, project, agent, scope-default) caller, plus the evidence messages (if any) facts
// must be bound against — add_event supplies these; a direct add_note call passes nil.
type AddNoteRequest struct {
	TenantID         string
	ProjectID        string
	AgentID          string
	EvidenceMessages []string
	Notes            []NoteInput
}

// NoteResult is the per-note outcome returned from an add_note call.
type NoteResult struct {
	NoteID     uuid.UUID
	Op         NoteOp
	RejectCode domain.RejectCode
}

// AddNoteResponse wraps the per-note results of one add_note call, in request order.
type AddNoteResponse struct {
	Results []NoteResult
}

// EvidenceRef points at one message an extracted note's claim is grounded in.
type EvidenceRef struct {
	MessageIndex int
	Quote        string
}

// ExtractedNote is one note candidate the Extract provider proposed from a conversation.
type ExtractedNote struct {
	Type            models.NoteType
	Key             *string
	Text            string
	Importance      float32
	Confidence      float32
	TTLDays         *int64
	ScopeSuggestion *models.Scope
	Evidence        []EvidenceRef
	Reason          string
}

// AddEventRequest is the add_event operation's input: a conversation transcript to extract
// notes from.
type AddEventRequest struct {
	TenantID     string
	ProjectID    string
	AgentID      string
	DefaultScope models.Scope
	Messages     []string
	DryRun       bool
}

// EventNoteDecision is one extracted note's fate: evidence-rejected, policy-ignored, or passed
// through to add_note (with its eventual add_note result attached when not a dry run).
type EventNoteDecision struct {
	Extracted    ExtractedNote
	Outcome      models.IngestOutcome
	MatchedRule  *string
	RejectCode   domain.RejectCode
	NoteResult   *NoteResult
}

// AddEventResponse is the add_event operation's output.
type AddEventResponse struct {
	Decisions []EventNoteDecision
}

// now is swappable in tests; production callers use time.Now via Clock.
type Clock func() time.Time
