package writegate

import (
	"context"
	"strconv"
	"time"

	"github.com/steveyegge/elf/internal/config"
	"github.com/steveyegge/elf/internal/idgen"
	"github.com/steveyegge/elf/internal/models"
	"github.com/steveyegge/elf/internal/svcerr"
)

// applyPolicy scans the configured rules for the first one matching this extracted note's
// type/scope whose confidence/importance floor the note fails to clear, downgrading
// REMEMBER to IGNORE. Resolves SPEC_FULL.md's Memory.policy.rules open question, grounded on
// §4.6 step 5's rule-matching description (no policy.rs survived the reference pack's
// filtering, so this is authored directly from the spec text rather than ported).
func applyPolicy(en ExtractedNote, policy config.MemoryPolicy) (models.IngestOutcome, *string) {
	for i, rule := range policy.Rules {
		if rule.NoteType != nil && *rule.NoteType != string(en.Type) {
			continue
		}
		if rule.Scope != nil && en.ScopeSuggestion != nil && *rule.Scope != string(*en.ScopeSuggestion) {
			continue
		}
		if rule.MinConfidence != nil && en.Confidence < *rule.MinConfidence {
			return models.IngestOutcomeIgnore, ruleLabel(i)
		}
		if rule.MinImportance != nil && en.Importance < *rule.MinImportance {
			return models.IngestOutcomeIgnore, ruleLabel(i)
		}
	}
	return models.IngestOutcomeRemember, nil
}

func ruleLabel(i int) *string {
	v := strconv.Itoa(i)
	return &v
}

// recordIngestDecision writes the audited REMEMBER/IGNORE verdict for one extracted note,
// in its own short transaction (the policy audit trail survives independent of whatever
// add_note does with an approved note afterward).
func recordIngestDecision(
	ctx context.Context, g *Gate, req AddEventRequest, en ExtractedNote,
	outcome models.IngestOutcome, matchedRule *string, now time.Time,
) error {
	tx, err := g.Store.BeginTx(ctx)
	if err != nil {
		return svcerr.Storage{Message: "begin ingest decision transaction", Cause: err}
	}
	defer tx.Rollback()

	d := &models.IngestDecision{
		DecisionID: idgen.New(), TenantID: req.TenantID, ProjectID: req.ProjectID, AgentID: req.AgentID,
		Outcome: outcome, MatchedPolicyRule: matchedRule, Confidence: en.Confidence,
		Importance: en.Importance, Ts: now,
	}
	if err := g.Store.InsertIngestDecision(ctx, tx, d); err != nil {
		return svcerr.Storage{Message: "insert ingest decision", Cause: err}
	}
	return tx.Commit()
}
