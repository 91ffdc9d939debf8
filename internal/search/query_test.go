package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/steveyegge/elf/internal/config"
)

func TestResolveExpansionMode(t *testing.T) {
	assert.Equal(t, ExpansionOff, resolveExpansionMode(&config.Config{}))
	assert.Equal(t, ExpansionAlways, resolveExpansionMode(&config.Config{Search: config.Search{Expansion: config.SearchExpansion{Mode: "always"}}}))
	assert.Equal(t, ExpansionDynamic, resolveExpansionMode(&config.Config{Search: config.Search{Expansion: config.SearchExpansion{Mode: "dynamic"}}}))
}

func TestShouldExpandDynamic(t *testing.T) {
	cfg := config.SearchDynamic{MinCandidates: 5, MinTopScore: 0.4}
	assert.True(t, shouldExpandDynamic(2, 0.9, cfg), "too few candidates should trigger expansion even with a strong top score")
	assert.True(t, shouldExpandDynamic(10, 0.1, cfg), "a weak top score should trigger expansion even with enough candidates")
	assert.False(t, shouldExpandDynamic(10, 0.9, cfg))
}

func TestNormalizeQueriesDedupesCaseInsensitiveAndCaps(t *testing.T) {
	out := normalizeQueries([]string{"Deploy Window", "deploy window", "rollback plan"}, "original query", true, 2)
	assert.Equal(t, []string{"original query", "Deploy Window"}, out)
}

func TestNormalizeQueriesDropsCJKAndBlank(t *testing.T) {
	out := normalizeQueries([]string{"  ", "中文查询", "valid query"}, "original", false, 5)
	assert.Equal(t, []string{"valid query"}, out)
}

func TestBuildExpansionMessagesIncludesConstraints(t *testing.T) {
	messages := buildExpansionMessages("deploy window", 3, true)
	assert.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0]["role"])
	assert.Equal(t, "user", messages[1]["role"])
	assert.Contains(t, messages[1]["content"], "deploy window")
}
