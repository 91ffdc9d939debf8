// Package models defines the persisted entity shapes shared across the write gate, outbox
// worker, and search pipeline.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Scope is a note's visibility class.
type Scope string

const (
	ScopeAgentPrivate  Scope = "agent_private"
	ScopeProjectShared Scope = "project_shared"
	ScopeOrgShared     Scope = "org_shared"
)

// NoteType enumerates the kinds of memory a Note can represent.
type NoteType string

const (
	NoteTypePlan       NoteType = "plan"
	NoteTypeFact       NoteType = "fact"
	NoteTypePreference NoteType = "preference"
	NoteTypeConstraint NoteType = "constraint"
	NoteTypeDecision   NoteType = "decision"
	NoteTypeProfile    NoteType = "profile"
)

// NoteStatus is a note's lifecycle state.
type NoteStatus string

const (
	NoteStatusActive     NoteStatus = "active"
	NoteStatusDeleted    NoteStatus = "deleted"
	NoteStatusDeprecated NoteStatus = "deprecated"
)

// Note is the primary memory entity.
type Note struct {
	NoteID           uuid.UUID
	TenantID         string
	ProjectID        string
	AgentID          string
	Scope            Scope
	Type             NoteType
	Key              *string
	Text             string
	Importance       float32
	Confidence       float32
	Status           NoteStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ExpiresAt        *time.Time
	EmbeddingVersion string
	SourceRef        json.RawMessage
	HitCount         int64
	LastHitAt        *time.Time
}

// NoteChunk is a contiguous, offset-bounded substring of a note's text.
type NoteChunk struct {
	ChunkID          uuid.UUID
	NoteID           uuid.UUID
	ChunkIndex       int32
	StartOffset      int32
	EndOffset        int32
	Text             string
	EmbeddingVersion string
	CreatedAt        time.Time
}

// ChunkEmbedding is the dense vector persisted for one chunk under one embedding version.
type ChunkEmbedding struct {
	ChunkID          uuid.UUID
	EmbeddingVersion string
	EmbeddingDim     int32
	Vec              []float32
	CreatedAt        time.Time
}

// VersionOp enumerates the operations recorded in the append-only versions table.
type VersionOp string

const (
	VersionOpAdd    VersionOp = "ADD"
	VersionOpUpdate VersionOp = "UPDATE"
	VersionOpDelete VersionOp = "DELETE"
)

// Version is an append-only audit row for a note mutation.
type Version struct {
	VersionID    uuid.UUID
	NoteID       uuid.UUID
	Op           VersionOp
	PrevSnapshot json.RawMessage
	NewSnapshot  json.RawMessage
	Reason       string
	Actor        string
	Ts           time.Time
}

// OutboxOp enumerates the mutation an outbox entry represents.
type OutboxOp string

const (
	OutboxOpUpsert OutboxOp = "UPSERT"
	OutboxOpDelete OutboxOp = "DELETE"
)

// OutboxStatus is an outbox entry's state in the claim/lease/retry state machine (see
// internal/outbox).
type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "PENDING"
	OutboxStatusClaimed OutboxStatus = "CLAIMED"
	OutboxStatusDone    OutboxStatus = "DONE"
	OutboxStatusFailed  OutboxStatus = "FAILED"
)

// IndexingOutboxEntry is a durable, at-least-once record of a pending index mutation.
type IndexingOutboxEntry struct {
	OutboxID         uuid.UUID
	NoteID           uuid.UUID
	Op               OutboxOp
	EmbeddingVersion string
	Status           OutboxStatus
	Attempts         int32
	LastError        *string
	AvailableAt      time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// StructuredFields is the optional per-note sidecar of summary/facts/concepts.
type StructuredFields struct {
	Summary  *string
	Facts    []string
	Concepts []string
}

// IsEffectivelyEmpty reports whether the structured fields carry no usable content.
func (s *StructuredFields) IsEffectivelyEmpty() bool {
	if s == nil {
		return true
	}
	if s.Summary != nil && *s.Summary != "" {
		return false
	}
	return len(s.Facts) == 0 && len(s.Concepts) == 0
}

// GrantKind distinguishes a project-wide share from an agent-specific share.
type GrantKind string

const (
	GrantKindProject GrantKind = "project"
	GrantKindAgent   GrantKind = "agent"
)

// SpaceGrant is a cross-agent share of a non-private scope.
type SpaceGrant struct {
	GrantID         uuid.UUID
	TenantID        string
	ProjectID       string
	Scope           Scope
	SpaceOwnerAgent string
	GranteeKind     GrantKind
	GranteeAgentID  *string
	RevokedAt       *time.Time
}

// SearchTrace is the explainable, replayable record of one search's policy and terms.
type SearchTrace struct {
	TraceID           uuid.UUID
	SessionID         *string
	Query             string
	CandidateSetHash  string
	RankingPolicyHash string
	SchemaVersion     string
	CreatedAt         time.Time
}

// IngestOutcome is the result of running an extracted note through the policy filter.
type IngestOutcome string

const (
	IngestOutcomeRemember IngestOutcome = "REMEMBER"
	IngestOutcomeIgnore   IngestOutcome = "IGNORE"
)

// IngestDecision audits the policy filter's REMEMBER/IGNORE verdict for one extracted note.
type IngestDecision struct {
	DecisionID        uuid.UUID
	NoteID            *uuid.UUID
	TenantID          string
	ProjectID         string
	AgentID           string
	Outcome           IngestOutcome
	MatchedPolicyRule *string
	Confidence        float32
	Importance        float32
	Ts                time.Time
}
