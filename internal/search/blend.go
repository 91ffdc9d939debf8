package search

import (
	"math"

	"github.com/steveyegge/elf/internal/config"
)

// retrievalWeightForRank resolves the piecewise retrieval-vs-rerank blend weight for a given
// 1-based retrieval rank from cfg.Ranking.Blend.Segments (SPEC_FULL.md §4.9 step 9): segments
// are checked in order, the first whose MaxRetrievalRank is >= rank applies, and a rank beyond
// every segment's threshold falls through to the last segment's weight. This piecewise-policy
// shape has no Rust counterpart in the retrieved reference pack (policy.rs was not present) and
// is authored directly from the spec prose and config.RankingBlendSegment's field names.
func retrievalWeightForRank(segments []config.RankingBlendSegment, rank int) float32 {
	if len(segments) == 0 {
		return 0.5
	}
	for _, seg := range segments {
		if uint32(rank) <= seg.MaxRetrievalRank {
			return seg.RetrievalWeight
		}
	}
	return segments[len(segments)-1].RetrievalWeight
}

// tieBreaker computes tie_breaker_weight * importance * exp(-age_days / recency_tau_days), the
// small deterministic nudge toward important, recently-updated notes when blend scores tie.
func tieBreaker(weight, importance, ageDays, recencyTauDays float32) float32 {
	if recencyTauDays <= 0 {
		return weight * importance
	}
	return weight * importance * float32(math.Exp(float64(-ageDays/recencyTauDays)))
}

// blendScore computes retrieval_weight*retrieval_norm + (1-retrieval_weight)*rerank_norm.
func blendScore(retrievalWeight, retrievalNorm, rerankNorm float32) float32 {
	return retrievalWeight*retrievalNorm + (1-retrievalWeight)*rerankNorm
}

// finalScore sums every additive ranking term into the item's final score, per §4.9 step 9's
// closing formula.
func finalScore(blend, tieBreaker, scopeBoost float32, det DeterministicRankingTerms) float32 {
	return blend + tieBreaker + scopeBoost + det.LexicalBonus + det.HitBoost + det.DecayPenalty
}
