package search

import (
	"math"

	"github.com/steveyegge/elf/internal/config"
)

// SearchRankingExplainSchemaV2 is the stable schema identifier stamped on every explain payload,
// so a future schema change can be detected by a replaying consumer.
const SearchRankingExplainSchemaV2 = "search_ranking_explain/v2"

// SearchRankingTerm is one named, replayable contribution to an item's final score.
type SearchRankingTerm struct {
	Name   string         `json:"name"`
	Value  float32        `json:"value"`
	Inputs map[string]any `json:"inputs,omitempty"`
}

// SearchRankingExplain is the full per-item explain payload returned alongside a search result.
type SearchRankingExplain struct {
	Schema     string              `json:"schema"`
	PolicyID   string              `json:"policy_id"`
	FinalScore float32             `json:"final_score"`
	Terms      []SearchRankingTerm `json:"terms"`
}

// stripTermInputs drops the inputs map from every term, for a compact form (e.g. a list view
// that doesn't need per-term replay detail).
func stripTermInputs(terms []SearchRankingTerm) []SearchRankingTerm {
	out := make([]SearchRankingTerm, len(terms))
	for i, t := range terms {
		out[i] = SearchRankingTerm{Name: t.Name, Value: t.Value}
	}
	return out
}

// traceTermsArgs bundles every input build_trace_terms_v2 needs to reconstruct the seven-term
// explain breakdown for one ranked item.
type traceTermsArgs struct {
	cfg                     *config.Config
	blendEnabled            bool
	retrievalNormalization  string
	rerankNormalization     string
	blendRetrievalWeight    float32
	retrievalRank           int
	retrievalNorm           float32
	retrievalTerm           float32
	rerankScore             float32
	rerankRank              int
	rerankNorm              float32
	rerankTerm              float32
	tieBreakerScore         float32
	importance              float32
	ageDays                 float32
	scope                   string
	scopeContextBoost       float32
	det                     DeterministicRankingTerms
}

// buildTraceTermsV2 reconstructs the seven explain terms (blend.retrieval, blend.rerank,
// tie_breaker, context.scope_boost, deterministic.lexical_bonus, deterministic.hit_boost,
// deterministic.decay_penalty) with their replay inputs, ported from ranking_explain_v2.rs's
// build_trace_terms_v2.
func buildTraceTermsV2(args traceTermsArgs) []SearchRankingTerm {
	cfg := args.cfg
	det := cfg.Ranking.Deterministic

	terms := make([]SearchRankingTerm, 0, 7)

	terms = append(terms, SearchRankingTerm{
		Name:  "blend.retrieval",
		Value: args.retrievalTerm,
		Inputs: map[string]any{
			"enabled":                  args.blendEnabled,
			"retrieval_rank":           args.retrievalRank,
			"retrieval_norm":           args.retrievalNorm,
			"retrieval_normalization":  args.retrievalNormalization,
			"blend_retrieval_weight":   args.blendRetrievalWeight,
		},
	})

	terms = append(terms, SearchRankingTerm{
		Name:  "blend.rerank",
		Value: args.rerankTerm,
		Inputs: map[string]any{
			"enabled":                args.blendEnabled,
			"rerank_score":           args.rerankScore,
			"rerank_rank":            args.rerankRank,
			"rerank_norm":            args.rerankNorm,
			"rerank_normalization":   args.rerankNormalization,
			"blend_retrieval_weight": args.blendRetrievalWeight,
		},
	})

	var recencyDecay float32 = 1
	if cfg.Ranking.RecencyTauDays > 0 {
		recencyDecay = float32(math.Exp(float64(-args.ageDays / cfg.Ranking.RecencyTauDays)))
	}
	terms = append(terms, SearchRankingTerm{
		Name:  "tie_breaker",
		Value: args.tieBreakerScore,
		Inputs: map[string]any{
			"tie_breaker_weight": cfg.Ranking.TieBreakerWeight,
			"importance":         args.importance,
			"age_days":           args.ageDays,
			"recency_tau_days":   cfg.Ranking.RecencyTauDays,
			"recency_decay":      recencyDecay,
		},
	})

	var scopeBoostWeight *float32
	if cfg.Context != nil {
		w := cfg.Context.ScopeBoostWeight
		scopeBoostWeight = &w
	}
	terms = append(terms, SearchRankingTerm{
		Name:  "context.scope_boost",
		Value: args.scopeContextBoost,
		Inputs: map[string]any{
			"scope":             args.scope,
			"scope_boost_weight": scopeBoostWeight,
		},
	})

	terms = append(terms, SearchRankingTerm{
		Name:  "deterministic.lexical_bonus",
		Value: args.det.LexicalBonus,
		Inputs: map[string]any{
			"enabled":         det.Enabled && det.Lexical.Enabled,
			"weight":          det.Lexical.Weight,
			"min_ratio":       det.Lexical.MinRatio,
			"max_query_terms": det.Lexical.MaxQueryTerms,
			"max_text_terms":  det.Lexical.MaxTextTerms,
			"overlap_ratio":   args.det.LexicalOverlapRatio,
		},
	})

	terms = append(terms, SearchRankingTerm{
		Name:  "deterministic.hit_boost",
		Value: args.det.HitBoost,
		Inputs: map[string]any{
			"enabled":            det.Enabled && det.Hits.Enabled,
			"weight":             det.Hits.Weight,
			"half_saturation":    det.Hits.HalfSaturation,
			"last_hit_tau_days":  det.Hits.LastHitTauDays,
			"hit_count":          args.det.HitCount,
			"last_hit_age_days":  args.det.LastHitAgeDays,
		},
	})

	terms = append(terms, SearchRankingTerm{
		Name:  "deterministic.decay_penalty",
		Value: args.det.DecayPenalty,
		Inputs: map[string]any{
			"enabled":  det.Enabled && det.Decay.Enabled,
			"weight":   det.Decay.Weight,
			"tau_days": det.Decay.TauDays,
			"age_days": args.ageDays,
		},
	})

	return terms
}
