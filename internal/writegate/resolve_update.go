package writegate

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/elf/internal/config"
	"github.com/steveyegge/elf/internal/idgen"
	"github.com/steveyegge/elf/internal/relstore"
)

// updateDecisionKind is the dedup verdict resolve_update reaches before any row is written,
// mirroring lib.rs's UpdateDecision enum.
type updateDecisionKind int

const (
	decisionAdd updateDecisionKind = iota
	decisionUpdate
	decisionNone
)

type updateDecision struct {
	kind       updateDecisionKind
	existingID uuid.UUID // valid for decisionUpdate/decisionNone
	newID      uuid.UUID // valid for decisionAdd
}

// resolveUpdate runs add_note's dedup algorithm inside tx: exact key match wins outright;
// otherwise embed the candidate once and compare against same-type live notes by cosine
// similarity, walked in ascending note_id order so ties break toward the lowest id. Grounded
// exactly on crates/elf-service/src/lib.rs's resolve_update.
func resolveUpdate(
	ctx context.Context, tx *sql.Tx, store *relstore.Store,
	tenantID, projectID, agentID, scope, noteType string, key *string,
	vec []float32, embeddingVersion string, cfg *config.Config, now time.Time,
) (updateDecision, error) {
	if key != nil && *key != "" {
		id, found, err := store.FindLiveKeyedNote(ctx, tx, tenantID, projectID, agentID, scope, noteType, *key, now)
		if err != nil {
			return updateDecision{}, fmt.Errorf("writegate: resolve update: keyed lookup: %w", err)
		}
		if found {
			return updateDecision{kind: decisionUpdate, existingID: id}, nil
		}
		return updateDecision{kind: decisionAdd, newID: idgen.New()}, nil
	}

	candidateIDs, err := store.LiveNoteIDsByTypeFilter(ctx, tx, tenantID, projectID, agentID, scope, noteType, now)
	if err != nil {
		return updateDecision{}, fmt.Errorf("writegate: resolve update: candidate lookup: %w", err)
	}
	if len(candidateIDs) == 0 {
		return updateDecision{kind: decisionAdd, newID: idgen.New()}, nil
	}

	bestID, bestScore, found, err := store.MostSimilarNote(ctx, tx, vec, candidateIDs, embeddingVersion)
	if err != nil {
		return updateDecision{}, fmt.Errorf("writegate: resolve update: similarity: %w", err)
	}
	if !found {
		return updateDecision{kind: decisionAdd, newID: idgen.New()}, nil
	}

	switch {
	case bestScore >= cfg.Memory.DupSimThreshold:
		return updateDecision{kind: decisionNone, existingID: bestID}, nil
	case bestScore >= cfg.Memory.UpdateSimThreshold:
		return updateDecision{kind: decisionUpdate, existingID: bestID}, nil
	default:
		return updateDecision{kind: decisionAdd, newID: idgen.New()}, nil
	}
}
