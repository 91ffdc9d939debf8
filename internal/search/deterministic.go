package search

import (
	"math"
	"time"

	"github.com/steveyegge/elf/internal/config"
)

// DeterministicRankingTerms are the three non-learned ranking adjustments computed purely from
// note/candidate state: a text-overlap bonus, a hit-count/recency bonus, and an age-decay
// penalty (SPEC_FULL.md §4.9 step 9).
type DeterministicRankingTerms struct {
	LexicalOverlapRatio float32
	LexicalBonus        float32
	HitCount            int64
	LastHitAgeDays       *float32
	HitBoost            float32
	DecayPenalty        float32
}

// computeDeterministicRankingTerms ports text.rs's compute_deterministic_ranking_terms: the
// lexical bonus scales query/snippet token overlap above a configured floor to [0,1]; the hit
// boost multiplies a saturating function of hit_count by an exponential recency decay since the
// last hit; the decay penalty subtracts an exponential staleness curve over the note's age.
func computeDeterministicRankingTerms(
	cfg config.RankingDeterministic, queryTokens []string, snippet string,
	noteHitCount int64, noteLastHitAt *time.Time, ageDays float32, now time.Time,
) DeterministicRankingTerms {
	var out DeterministicRankingTerms
	if !cfg.Enabled {
		return out
	}

	if cfg.Lexical.Enabled && cfg.Lexical.Weight > 0 && len(queryTokens) > 0 {
		ratio := lexicalOverlapRatio(queryTokens, snippet, int(cfg.Lexical.MaxTextTerms))
		out.LexicalOverlapRatio = ratio

		minRatio := clamp01(cfg.Lexical.MinRatio)
		var scaled float32
		switch {
		case ratio >= minRatio && minRatio < 1:
			scaled = clamp01((ratio - minRatio) / (1 - minRatio))
		case ratio >= 1 && minRatio >= 1:
			scaled = 1
		default:
			scaled = 0
		}
		out.LexicalBonus = cfg.Lexical.Weight * scaled
	}

	if cfg.Hits.Enabled && cfg.Hits.Weight > 0 {
		hitCount := noteHitCount
		if hitCount < 0 {
			hitCount = 0
		}
		out.HitCount = hitCount

		half := cfg.Hits.HalfSaturation
		var hitSaturation float32
		if half > 0 && hitCount > 0 {
			hc := float32(hitCount)
			hitSaturation = clamp01(hc / (hc + half))
		}

		var lastHitAgeDays *float32
		if noteLastHitAt != nil {
			days := float32(now.Sub(*noteLastHitAt).Seconds() / 86400)
			if days < 0 {
				days = 0
			}
			lastHitAgeDays = &days
		}
		out.LastHitAgeDays = lastHitAgeDays

		tau := cfg.Hits.LastHitTauDays
		var recency float32 = 1
		if tau > 0 {
			if lastHitAgeDays != nil {
				recency = float32(math.Exp(float64(-*lastHitAgeDays / tau)))
			}
		}
		out.HitBoost = cfg.Hits.Weight * hitSaturation * recency
	}

	if cfg.Decay.Enabled && cfg.Decay.Weight > 0 {
		if ageDays < 0 {
			ageDays = 0
		}
		tau := cfg.Decay.TauDays
		var staleness float32
		if tau > 0 {
			staleness = 1 - float32(math.Exp(float64(-ageDays/tau)))
		}
		out.DecayPenalty = -cfg.Decay.Weight * clamp01(staleness)
	}

	return out
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
