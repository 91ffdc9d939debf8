package relstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/elf/internal/models"
)

// GetNotesByIDs loads a batch of notes outside any transaction, for the search pipeline's note
// materialization step (SPEC_FULL.md §4.9 step 5).
func (s *Store) GetNotesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Note, error) {
	out := map[uuid.UUID]*models.Note{}
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM memory_notes WHERE note_id = ANY($1)`, uuidArray(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("relstore: get notes by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("relstore: get notes by ids scan: %w", err)
		}
		out[n.NoteID] = n
	}
	return out, rows.Err()
}

// ChunkTextKey identifies one chunk by its note and 0-based index, the composite key the
// snippet-stitch step looks chunks up by.
type ChunkTextKey struct {
	NoteID     uuid.UUID
	ChunkIndex int32
}

// GetChunkTexts loads chunk text for a set of (note_id, chunk_index) pairs, used to stitch the
// chunk_index-1/chunk_index/chunk_index+1 snippet window around each surviving candidate.
func (s *Store) GetChunkTexts(ctx context.Context, noteIDs []uuid.UUID) (map[ChunkTextKey]string, error) {
	out := map[ChunkTextKey]string{}
	if len(noteIDs) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT note_id, chunk_index, text FROM memory_note_chunks WHERE note_id = ANY($1)`,
		uuidArray(noteIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("relstore: get chunk texts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key ChunkTextKey
		var text string
		if err := rows.Scan(&key.NoteID, &key.ChunkIndex, &text); err != nil {
			return nil, fmt.Errorf("relstore: get chunk texts scan: %w", err)
		}
		out[key] = text
	}
	return out, rows.Err()
}

// StructuredFieldCandidate is one nearest-neighbor hit from the denormalized facts/concepts/
// summary embedding index, the structured-field retrieval source of SPEC_FULL.md §4.9 step 3.
// ChunkID is the note's lead chunk (chunk_index 0), since merge unions candidates by chunk_id
// regardless of which source produced them.
type StructuredFieldCandidate struct {
	ChunkID    uuid.UUID
	NoteID     uuid.UUID
	FieldKind  string
	Similarity float32
}

// SearchStructuredFields runs a cosine-similarity nearest-neighbor query over
// note_field_embeddings, joined through memory_note_fields to memory_notes so the result can be
// scope/status/tenant/project filtered the same way the vector store's payload filter is, and
// through memory_note_chunks to resolve each hit's lead chunk_id for the merge step. A note with
// no chunk_index=0 row (not yet indexed by the outbox worker) is excluded.
func (s *Store) SearchStructuredFields(
	ctx context.Context, vec []float32, embeddingVersion, tenantID, projectID string,
	scopes []string, limit int,
) ([]StructuredFieldCandidate, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.chunk_id, n.note_id, f.field_kind, (1 - (e.vec <=> $1::vector))::real AS similarity
		FROM note_field_embeddings e
		JOIN memory_note_fields f ON f.field_id = e.field_id
		JOIN memory_notes n ON n.note_id = f.note_id
		JOIN memory_note_chunks c ON c.note_id = n.note_id AND c.chunk_index = 0
		WHERE e.embedding_version = $2
			AND n.tenant_id = $3 AND n.project_id = $4
			AND n.status = 'active'
			AND n.scope = ANY($5)
		ORDER BY similarity DESC
		LIMIT $6`,
		vecLiteral(vec), embeddingVersion, tenantID, projectID, stringArray(scopes), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("relstore: search structured fields: %w", err)
	}
	defer rows.Close()

	var out []StructuredFieldCandidate
	for rows.Next() {
		var c StructuredFieldCandidate
		if err := rows.Scan(&c.ChunkID, &c.NoteID, &c.FieldKind, &c.Similarity); err != nil {
			return nil, fmt.Errorf("relstore: search structured fields scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertSearchTrace persists the replay/explain record for one search, matching
// ranking_explain_v2.rs's SearchRankingExplain shape at the trace-row level.
func (s *Store) InsertSearchTrace(ctx context.Context, t *models.SearchTrace) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO search_traces (
			trace_id, session_id, query, candidate_set_hash, ranking_policy_hash,
			schema_version, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		t.TraceID, t.SessionID, t.Query, t.CandidateSetHash, t.RankingPolicyHash,
		t.SchemaVersion, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("relstore: insert search trace: %w", err)
	}
	return nil
}

// SearchTraceItem is one ranked result's replay row, persisted alongside the trace header.
type SearchTraceItem struct {
	Rank       int
	NoteID     uuid.UUID
	ChunkID    uuid.UUID
	FinalScore float32
	Explain    []byte // JSON-encoded SearchRankingExplain
}

// InsertSearchTraceItems persists the per-item explain rows for one trace.
func (s *Store) InsertSearchTraceItems(ctx context.Context, traceID uuid.UUID, items []SearchTraceItem) error {
	for _, item := range items {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO search_trace_items (trace_id, rank, note_id, chunk_id, final_score, explain)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			traceID, item.Rank, item.NoteID, item.ChunkID, item.FinalScore, item.Explain,
		)
		if err != nil {
			return fmt.Errorf("relstore: insert search trace item: %w", err)
		}
	}
	return nil
}

// EnqueueSearchTraceOutbox schedules the low-priority drain that would, in a full deployment,
// fan the trace out to a long-term analytics sink; the outbox row itself is the durable record
// that the trace was produced even if that fan-out never runs.
func (s *Store) EnqueueSearchTraceOutbox(ctx context.Context, traceID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO search_trace_outbox (trace_id) VALUES ($1) ON CONFLICT (trace_id) DO NOTHING`,
		traceID,
	)
	if err != nil {
		return fmt.Errorf("relstore: enqueue search trace outbox: %w", err)
	}
	return nil
}

// UpsertSearchSession records or refreshes the session a trace belongs to, when the caller
// supplied a session_id.
func (s *Store) UpsertSearchSession(ctx context.Context, sessionID, tenantID, projectID, agentID string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO search_sessions (session_id, tenant_id, project_id, agent_id, created_at, last_seen_at)
		VALUES ($1,$2,$3,$4,$5,$5)
		ON CONFLICT (session_id) DO UPDATE SET last_seen_at = EXCLUDED.last_seen_at`,
		sessionID, tenantID, projectID, agentID, now,
	)
	if err != nil {
		return fmt.Errorf("relstore: upsert search session: %w", err)
	}
	return nil
}

func stringArray(vals []string) string {
	out := "{"
	for i, v := range vals {
		if i > 0 {
			out += ","
		}
		out += `"` + v + `"`
	}
	return out + "}"
}
