package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/steveyegge/elf/internal/config"
)

func TestSnippetSimilarityIdenticalTextIsOne(t *testing.T) {
	assert.Equal(t, float32(1), snippetSimilarity("deploy to staging", "deploy to staging"))
}

func TestSnippetSimilarityDisjointTextIsZero(t *testing.T) {
	assert.Equal(t, float32(0), snippetSimilarity("deploy to staging", "rotate the database credentials"))
}

func TestSelectDiverseDisabledReturnsOriginalOrder(t *testing.T) {
	cfg := config.RankingDiversity{Enabled: false}
	order := selectDiverse([]float32{0.9, 0.5, 0.1}, []string{"a", "b", "c"}, cfg)
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestSelectDiverseSkipsNearDuplicatesWithinSkipBudget(t *testing.T) {
	cfg := config.RankingDiversity{Enabled: true, SimThreshold: 0.9, MMRLambda: 0.5, MaxSkips: 1}
	finals := []float32{1.0, 0.95, 0.5}
	snippets := []string{
		"deploy to staging every friday",
		"deploy to staging every friday",
		"rotate database credentials nightly",
	}
	order := selectDiverse(finals, snippets, cfg)
	assert.Equal(t, 2, len(order), "the near-duplicate should be skipped, leaving the two distinct items")
	assert.Contains(t, order, 0)
	assert.Contains(t, order, 2)
}

func TestSelectDiverseForceIncludesOnceSkipBudgetExhausted(t *testing.T) {
	cfg := config.RankingDiversity{Enabled: true, SimThreshold: 0.9, MMRLambda: 0.5, MaxSkips: 0}
	finals := []float32{1.0, 0.95}
	snippets := []string{"deploy to staging every friday", "deploy to staging every friday"}
	order := selectDiverse(finals, snippets, cfg)
	assert.Len(t, order, 2, "with no skip budget every candidate must still appear")
}
