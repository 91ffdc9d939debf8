package search

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/steveyegge/elf/internal/models"
	"github.com/steveyegge/elf/internal/relstore"
)

// retrievalSourcesPolicy is the resolved weight/priority pair for each candidate source,
// matching policy.rs's ResolvedRetrievalSourcesPolicy shape (that file itself was not in the
// retrieved reference pack; this struct and resolveRetrievalSourcesPolicy below are authored
// directly from SPEC_FULL.md §4.9 step 4 and config.RankingRetrievalSources's field names).
type retrievalSourcesPolicy struct {
	fusionWeight            float32
	structuredFieldWeight   float32
	fusionPriority          uint32
	structuredFieldPriority uint32
}

func retrievalSourceWeight(p retrievalSourcesPolicy, source RetrievalSourceKind) float32 {
	if source == SourceStructuredField {
		return p.structuredFieldWeight
	}
	return p.fusionWeight
}

func retrievalSourcePriority(p retrievalSourcesPolicy, source RetrievalSourceKind) uint32 {
	if source == SourceStructuredField {
		return p.structuredFieldPriority
	}
	return p.fusionPriority
}

// retrievalSourceKindOrder breaks a priority tie deterministically: structured-field candidates
// sort before fusion candidates in the per-source rank tie-break order.
func retrievalSourceKindOrder(source RetrievalSourceKind) int {
	if source == SourceStructuredField {
		return 0
	}
	return 1
}

// rankNormalize maps a 1-based rank within a total-sized list to a [0,1] score, 1.0 at rank 1
// and decreasing linearly to 0.0 at rank==total. A single-item list (or rank 0, meaning "not
// present") always yields the edge value.
func rankNormalize(rank, total int) float32 {
	if total <= 1 {
		return 1
	}
	if rank == 0 {
		return 0
	}
	denom := float32(total - 1)
	pos := float32(rank - 1)
	v := 1 - pos/denom
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

type mergedRetrievalCandidate struct {
	candidate     MergedCandidate
	sourceRanks   map[RetrievalSourceKind]int
	combinedScore float32
}

// mergeRetrievalCandidates folds the per-source candidate lists into one merged list keyed by
// chunk_id (several chunks of one note can each survive), weighting each source's rank-normalized contribution by its configured weight and
// sorting by combined_score desc, then by how many sources hit (more sources wins), then by each
// source's rank ascending (sources ordered by priority then kind order), then by chunk_id for a
// fully deterministic tie-break.
func mergeRetrievalCandidates(
	sources map[RetrievalSourceKind][]ChunkCandidate, policy retrievalSourcesPolicy, candidateK int,
) []MergedCandidate {
	if candidateK <= 0 {
		return nil
	}

	byChunk := map[uuid.UUID]*mergedRetrievalCandidate{}
	sourceTotals := map[RetrievalSourceKind]int{}

	for source, candidates := range sources {
		seenForSource := map[uuid.UUID]struct{}{}
		for _, c := range candidates {
			if _, ok := seenForSource[c.ChunkID]; !ok {
				seenForSource[c.ChunkID] = struct{}{}
				sourceTotals[source]++
			}
		}

		for rank, c := range candidates {
			existing, ok := byChunk[c.ChunkID]
			if ok {
				if cur, has := existing.sourceRanks[source]; !has || rank+1 < cur {
					existing.sourceRanks[source] = rank + 1
				}
				continue
			}
			byChunk[c.ChunkID] = &mergedRetrievalCandidate{
				candidate: MergedCandidate{
					ChunkID: c.ChunkID, NoteID: c.NoteID, ChunkIndex: c.ChunkIndex,
					EmbeddingVersion: c.EmbeddingVersion, UpdatedAt: c.UpdatedAt,
				},
				sourceRanks: map[RetrievalSourceKind]int{source: rank + 1},
			}
		}
	}
	if len(byChunk) == 0 {
		return nil
	}
	for source, total := range sourceTotals {
		if total < 1 {
			sourceTotals[source] = 1
		}
	}

	var sourceOrder []RetrievalSourceKind
	for source := range sourceTotals {
		sourceOrder = append(sourceOrder, source)
	}
	sort.Slice(sourceOrder, func(i, j int) bool {
		pi, pj := retrievalSourcePriority(policy, sourceOrder[i]), retrievalSourcePriority(policy, sourceOrder[j])
		if pi != pj {
			return pi < pj
		}
		return retrievalSourceKindOrder(sourceOrder[i]) < retrievalSourceKindOrder(sourceOrder[j])
	})

	merged := make([]*mergedRetrievalCandidate, 0, len(byChunk))
	for _, m := range byChunk {
		var combined float32
		for source, rank := range m.sourceRanks {
			total := sourceTotals[source]
			combined += retrievalSourceWeight(policy, source) * rankNormalize(rank, total)
		}
		m.combinedScore = combined
		m.candidate.CombinedScore = combined
		m.candidate.SourceRanks = m.sourceRanks
		merged = append(merged, m)
	}

	sort.Slice(merged, func(i, j int) bool {
		left, right := merged[i], merged[j]
		if left.combinedScore != right.combinedScore {
			return left.combinedScore > right.combinedScore
		}
		if len(left.sourceRanks) != len(right.sourceRanks) {
			return len(left.sourceRanks) > len(right.sourceRanks)
		}
		for _, source := range sourceOrder {
			lr, lok := left.sourceRanks[source]
			rr, rok := right.sourceRanks[source]
			lv, rv := rankAscValue(lr, lok), rankAscValue(rr, rok)
			if lv != rv {
				return lv < rv
			}
		}
		return less(left.candidate.ChunkID, right.candidate.ChunkID)
	})

	if len(merged) > candidateK {
		merged = merged[:candidateK]
	}
	out := make([]MergedCandidate, len(merged))
	for i, m := range merged {
		out[i] = m.candidate
	}
	return out
}

func rankAscValue(rank int, present bool) int {
	if !present {
		return int(^uint(0) >> 1)
	}
	return rank
}

func less(a, b uuid.UUID) bool {
	return a.String() < b.String()
}

// candidateMatchesNote reports whether a merged candidate's embedding_version and updated_at
// still match the note's current row — a stale point left over from a slower outbox worker
// tick must be dropped rather than surfaced with mismatched content (SPEC_FULL.md §4.9 step 5).
func candidateMatchesNote(note *models.Note, c MergedCandidate) bool {
	if c.EmbeddingVersion != "" && c.EmbeddingVersion != note.EmbeddingVersion {
		return false
	}
	if c.UpdatedAt != nil && !c.UpdatedAt.Equal(note.UpdatedAt) {
		return false
	}
	return true
}

// collectNeighborPairs lists the (note_id, chunk_index) pairs a snippet-stitch pass needs to
// load: each candidate's own chunk plus its immediate predecessor/successor, deduplicated.
func collectNeighborPairs(candidates []MergedCandidate) []relstore.ChunkTextKey {
	seen := map[relstore.ChunkTextKey]struct{}{}
	var out []relstore.ChunkTextKey
	for _, c := range candidates {
		indices := []int32{c.ChunkIndex}
		if c.ChunkIndex > 0 {
			indices = append(indices, c.ChunkIndex-1)
		}
		indices = append(indices, c.ChunkIndex+1)
		for _, idx := range indices {
			key := relstore.ChunkTextKey{NoteID: c.NoteID, ChunkIndex: idx}
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				out = append(out, key)
			}
		}
	}
	return out
}

// stitchSnippet concatenates the chunk_index-1/chunk_index/chunk_index+1 window's text (each
// part only if present) and trims the result.
func stitchSnippet(noteID uuid.UUID, chunkIndex int32, chunks map[relstore.ChunkTextKey]string) string {
	var parts []string
	for _, idx := range []int32{chunkIndex - 1, chunkIndex, chunkIndex + 1} {
		if idx < 0 {
			continue
		}
		if text, ok := chunks[relstore.ChunkTextKey{NoteID: noteID, ChunkIndex: idx}]; ok {
			parts = append(parts, text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, ""))
}
