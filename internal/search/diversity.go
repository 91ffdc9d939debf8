package search

import (
	"github.com/steveyegge/elf/internal/config"
)

// snippetSimilarity is a Jaccard token-overlap similarity between two snippets, the pairwise
// similarity measure the MMR diversity stage diffs selected items against. Like blend.go's
// retrievalWeightForRank, this has no Rust counterpart in the retrieved pack (diversity.rs was
// not present) and is authored directly from SPEC_FULL.md §4.9 step 10's "pairwise snippet
// similarity" prose, using the same ASCII-alnum tokenization the rest of the pipeline already
// normalizes query/text tokens with rather than introducing a second text-similarity primitive.
func snippetSimilarity(a, b string) float32 {
	ta := tokenizeTextTerms(a, 1<<20)
	tb := tokenizeTextTerms(b, 1<<20)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	small, large := ta, tb
	if len(tb) < len(ta) {
		small, large = tb, ta
	}
	intersect := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			intersect++
		}
	}
	union := len(ta) + len(tb) - intersect
	if union == 0 {
		return 0
	}
	return float32(intersect) / float32(union)
}

type diversityCandidate struct {
	index   int
	snippet string
	final   float32
}

// selectDiverse implements SPEC_FULL.md §4.9 step 10's MMR pass: at each step, pick the
// remaining candidate maximizing `mmr_lambda*final - (1-mmr_lambda)*max_sim_to_selected`; if
// that pick's similarity to the nearest already-selected item is at or above sim_threshold, it
// is treated as a near-duplicate and skipped instead of selected — unless the skip budget
// (max_skips) is exhausted, in which case it is force-included so the result set never starves
// below the requested size. Returns the original indices in selection order.
func selectDiverse(finals []float32, snippets []string, cfg config.RankingDiversity) []int {
	n := len(finals)
	if n == 0 {
		return nil
	}
	if !cfg.Enabled {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}

	remaining := make([]diversityCandidate, n)
	for i := range finals {
		remaining[i] = diversityCandidate{index: i, snippet: snippets[i], final: finals[i]}
	}

	var selected []diversityCandidate
	var out []int
	skips := 0

	for len(remaining) > 0 {
		bestIdx := -1
		var bestMMR float32
		var bestMaxSim float32

		for i, cand := range remaining {
			maxSim := maxSimilarityTo(cand.snippet, selected)
			mmr := cfg.MMRLambda*cand.final - (1-cfg.MMRLambda)*maxSim
			if bestIdx == -1 || mmr > bestMMR {
				bestIdx = i
				bestMMR = mmr
				bestMaxSim = maxSim
			}
		}

		chosen := remaining[bestIdx]
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)

		if bestMaxSim >= cfg.SimThreshold && skips < int(cfg.MaxSkips) {
			skips++
			continue
		}

		selected = append(selected, chosen)
		out = append(out, chosen.index)
	}

	return out
}

func maxSimilarityTo(snippet string, selected []diversityCandidate) float32 {
	var maxSim float32
	for _, s := range selected {
		if sim := snippetSimilarity(snippet, s.snippet); sim > maxSim {
			maxSim = sim
		}
	}
	return maxSim
}
