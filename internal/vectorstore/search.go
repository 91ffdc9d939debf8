package vectorstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/steveyegge/elf/internal/svcerr"
)

// ChunkCandidate is one scored chunk point returned from a dense or BM25 query, grounded on
// retrieval.rs's ChunkCandidate/payload_* accessors.
type ChunkCandidate struct {
	ChunkID          uuid.UUID
	NoteID           uuid.UUID
	ChunkIndex       int32
	Score            float32
	UpdatedAt        *time.Time
	EmbeddingVersion string
}

// ScopeFilter is a coarse Qdrant-side prefilter on tenant/project/status/scope-membership,
// mirroring the payload-filtered isolation doc.go describes for contextd. It is deliberately
// not the final authorization check: agent-private visibility (does this candidate's
// agent_id match the requester?) and grant-based shared-scope visibility are re-checked
// downstream against the fetched note via access.NoteReadAllowed, the same layered
// defense-in-depth shape doc.go documents for its own payload isolation.
type ScopeFilter struct {
	TenantID  string
	ProjectID string
	Scopes    []string
}

func (f ScopeFilter) toQdrant() *qdrant.Filter {
	must := []*qdrant.Condition{
		qdrant.NewMatch("tenant_id", f.TenantID),
		qdrant.NewMatch("project_id", f.ProjectID),
		qdrant.NewMatch("status", "active"),
	}
	if len(f.Scopes) > 0 {
		must = append(must, qdrant.NewMatchKeywords("scope", f.Scopes...))
	}
	return &qdrant.Filter{Must: must}
}

// SearchDense runs a nearest-neighbor query against the named dense vector.
func (s *Store) SearchDense(ctx context.Context, query []float32, filter ScopeFilter, limit uint64) ([]ChunkCandidate, error) {
	ctx, end := s.startSpan(ctx, "SearchDense")
	var err error
	defer func() { end(err) }()

	using := DenseVectorName
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(query...),
		Using:          &using,
		Filter:         filter.toQdrant(),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		err = svcerr.Qdrant{Message: "dense search", Cause: err}
		return nil, err
	}
	return collectCandidates(points)
}

// SearchBM25 runs a sparse BM25 query against the named sparse vector using the raw query
// text as the document input, matching how admin.rs builds the same named vector for upsert.
func (s *Store) SearchBM25(ctx context.Context, queryText string, filter ScopeFilter, limit uint64) ([]ChunkCandidate, error) {
	ctx, end := s.startSpan(ctx, "SearchBM25")
	var err error
	defer func() { end(err) }()

	using := BM25VectorName
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQueryDocument(&qdrant.Document{Text: queryText, Model: BM25Model}),
		Using:          &using,
		Filter:         filter.toQdrant(),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		err = svcerr.Qdrant{Message: "bm25 search", Cause: err}
		return nil, err
	}
	return collectCandidates(points)
}

func collectCandidates(points []*qdrant.ScoredPoint) ([]ChunkCandidate, error) {
	out := make([]ChunkCandidate, 0, len(points))
	for _, p := range points {
		chunkID, ok := pointIDToUUID(p.Id)
		if !ok {
			continue
		}
		noteIDStr, ok := payloadString(p.Payload, "note_id")
		if !ok {
			continue
		}
		noteID, err := uuid.Parse(noteIDStr)
		if err != nil {
			continue
		}
		chunkIndex, ok := payloadI64(p.Payload, "chunk_index")
		if !ok {
			continue
		}
		embeddingVersion, _ := payloadString(p.Payload, "embedding_version")
		var updatedAt *time.Time
		if t, ok := payloadTime(p.Payload, "updated_at"); ok {
			updatedAt = &t
		}

		out = append(out, ChunkCandidate{
			ChunkID:          chunkID,
			NoteID:           noteID,
			ChunkIndex:       int32(chunkIndex),
			Score:            p.Score,
			UpdatedAt:        updatedAt,
			EmbeddingVersion: embeddingVersion,
		})
	}
	return out, nil
}

func pointIDToUUID(id *qdrant.PointId) (uuid.UUID, bool) {
	if id == nil {
		return uuid.UUID{}, false
	}
	if u, ok := id.PointIdOptions.(*qdrant.PointId_Uuid); ok {
		parsed, err := uuid.Parse(u.Uuid)
		if err != nil {
			return uuid.UUID{}, false
		}
		return parsed, true
	}
	return uuid.UUID{}, false
}
