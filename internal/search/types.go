// Package search implements the retrieval pipeline described in SPEC_FULL.md §4.9: query
// expansion, fused candidate generation, merge, note materialization, access filtering,
// snippet stitching, rerank, blend, MMR diversity, and the explain/trace emission of §4.10.
// Grounded on original_source/packages/elf-service/src/search/ranking.rs's module shape
// (cache/diversity/policy/query/retrieval/text), though the Go layout is flattened to one
// package rather than mirrored as Go sub-packages.
package search

import (
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/elf/internal/models"
)

// RetrievalSourceKind distinguishes the two candidate-generation sources merged at §4.9 step 4.
type RetrievalSourceKind string

const (
	// SourceFusion is the dense+BM25 fused query against chunk vectors.
	SourceFusion RetrievalSourceKind = "fusion"
	// SourceStructuredField is the nearest-neighbor query against denormalized
	// facts/concepts/summary embeddings.
	SourceStructuredField RetrievalSourceKind = "structured_field"
)

// ExpansionMode controls whether/when query expansion runs (§4.9 step 1).
type ExpansionMode string

const (
	ExpansionOff     ExpansionMode = "off"
	ExpansionAlways  ExpansionMode = "always"
	ExpansionDynamic ExpansionMode = "dynamic"
)

// ChunkCandidate is one raw candidate hit from a single retrieval source, before merge.
type ChunkCandidate struct {
	ChunkID          uuid.UUID
	NoteID           uuid.UUID
	ChunkIndex       int32
	Score            float32
	UpdatedAt        *time.Time
	EmbeddingVersion string
	Source           RetrievalSourceKind
}

// MergedCandidate is one surviving candidate after merge_retrieval_candidates (§4.9 step 4):
// one entry per distinct chunk_id, carrying the per-source ranks that produced it and the
// weighted combined_score used to sort and truncate the merged set.
type MergedCandidate struct {
	ChunkID          uuid.UUID
	NoteID           uuid.UUID
	ChunkIndex       int32
	EmbeddingVersion string
	UpdatedAt        *time.Time
	SourceRanks      map[RetrievalSourceKind]int
	CombinedScore    float32
}

// RankedItem is one candidate carried through materialization, access filtering, snippet
// stitching, rerank, blend, and diversity — the unit the pipeline finally truncates to top_k.
type RankedItem struct {
	Note             *models.Note
	ChunkID          uuid.UUID
	ChunkIndex       int32
	Snippet          string
	RetrievalScore   float32
	RerankScore      *float32
	BlendScore       float32
	DeterministicSum float32
	MatchedTerms     []string
	MatchedFields    []string
	Terms            []SearchRankingTerm
}

// Request is the caller-facing search request (§6's search operation).
type Request struct {
	TenantID     string
	ProjectID    string
	AgentID      string
	Query       string
	TopK        int
	CandidateK  int
	ReadProfile string // private_only | private_plus_project | all_scopes
	RecordHits  bool
	SessionID   *string
}

// Response is the caller-facing search result: ranked items plus the trace id that can be
// replayed via the explain/trace store (§4.10).
type Response struct {
	Items   []RankedItem
	TraceID uuid.UUID
}
