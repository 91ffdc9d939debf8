package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/steveyegge/elf/internal/config"
)

func TestComputeDeterministicRankingTermsDisabled(t *testing.T) {
	cfg := config.RankingDeterministic{Enabled: false}
	out := computeDeterministicRankingTerms(cfg, []string{"deploy"}, "we deploy nightly", 5, nil, 1, time.Now())
	assert.Zero(t, out)
}

func TestComputeDeterministicRankingTermsLexicalBonusScalesAboveFloor(t *testing.T) {
	cfg := config.RankingDeterministic{
		Enabled: true,
		Lexical: config.RankingDeterministicLexical{Enabled: true, Weight: 1, MinRatio: 0.5, MaxTextTerms: 50},
	}
	out := computeDeterministicRankingTerms(cfg, []string{"deploy", "staging"}, "we deploy to staging", 0, nil, 0, time.Now())
	assert.InDelta(t, float32(1), out.LexicalOverlapRatio, 1e-6)
	assert.Equal(t, float32(1), out.LexicalBonus)
}

func TestComputeDeterministicRankingTermsLexicalBonusZeroBelowFloor(t *testing.T) {
	cfg := config.RankingDeterministic{
		Enabled: true,
		Lexical: config.RankingDeterministicLexical{Enabled: true, Weight: 1, MinRatio: 0.9, MaxTextTerms: 50},
	}
	out := computeDeterministicRankingTerms(cfg, []string{"deploy", "staging", "rollback", "friday"}, "we deploy to staging", 0, nil, 0, time.Now())
	assert.Equal(t, float32(0), out.LexicalBonus)
}

func TestComputeDeterministicRankingTermsHitBoostDecaysWithAge(t *testing.T) {
	cfg := config.RankingDeterministic{
		Enabled: true,
		Hits:    config.RankingDeterministicHits{Enabled: true, Weight: 1, HalfSaturation: 5, LastHitTauDays: 10},
	}
	now := time.Now()
	recent := now.Add(-1 * time.Hour)
	stale := now.Add(-60 * 24 * time.Hour)

	recentOut := computeDeterministicRankingTerms(cfg, nil, "", 10, &recent, 0, now)
	staleOut := computeDeterministicRankingTerms(cfg, nil, "", 10, &stale, 0, now)
	assert.Greater(t, recentOut.HitBoost, staleOut.HitBoost)
}

func TestComputeDeterministicRankingTermsDecayPenaltyGrowsWithAge(t *testing.T) {
	cfg := config.RankingDeterministic{
		Enabled: true,
		Decay:   config.RankingDeterministicDecay{Enabled: true, Weight: 1, TauDays: 30},
	}
	young := computeDeterministicRankingTerms(cfg, nil, "", 0, nil, 1, time.Now())
	old := computeDeterministicRankingTerms(cfg, nil, "", 0, nil, 90, time.Now())
	assert.Less(t, old.DecayPenalty, young.DecayPenalty, "older notes should be penalized more negatively")
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, float32(0), clamp01(-1))
	assert.Equal(t, float32(1), clamp01(2))
	assert.Equal(t, float32(0.5), clamp01(0.5))
}
