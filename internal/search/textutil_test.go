package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/steveyegge/elf/internal/config"
)

func TestTokenizeQueryDedupesAndCapsLength(t *testing.T) {
	tokens := tokenizeQuery("Deploy Deploy the API api to staging!", 3)
	assert.Equal(t, []string{"deploy", "the", "api"}, tokens)
}

func TestTokenizeQueryDropsSingleCharTokens(t *testing.T) {
	tokens := tokenizeQuery("a b cd", 10)
	assert.Equal(t, []string{"cd"}, tokens)
}

func TestLexicalOverlapRatio(t *testing.T) {
	ratio := lexicalOverlapRatio([]string{"deploy", "staging", "rollback"}, "we deploy to staging every friday", 100)
	assert.InDelta(t, float32(2.0/3.0), ratio, 1e-6)
}

func TestLexicalOverlapRatioEmptyQuery(t *testing.T) {
	assert.Equal(t, float32(0), lexicalOverlapRatio(nil, "anything", 100))
}

func TestScopeDescriptionBoostRejectsCJKAndZeroWeight(t *testing.T) {
	tokens := []string{"deploy", "staging"}
	assert.Equal(t, float32(0), scopeDescriptionBoost(tokens, "deploy staging notes", 0))
	assert.Equal(t, float32(0), scopeDescriptionBoost(tokens, "中文描述", 1))
	assert.Greater(t, scopeDescriptionBoost(tokens, "deploy staging notes", 1), float32(0))
}

func TestBuildScopeContextBoostByScopeSkipsNilContext(t *testing.T) {
	assert.Empty(t, buildScopeContextBoostByScope([]string{"a"}, nil))
}

func TestBuildScopeContextBoostByScope(t *testing.T) {
	ctx := &config.Context{
		ScopeBoostWeight:  1,
		ScopeDescriptions: map[string]string{"project_shared": "deploy staging runbook"},
	}
	boosts := buildScopeContextBoostByScope([]string{"deploy", "staging"}, ctx)
	assert.Greater(t, boosts["project_shared"], float32(0))
}

func TestMatchTermsInTextFindsTextAndKeyMatches(t *testing.T) {
	key := "deploy-runbook"
	terms, fields := matchTermsInText([]string{"deploy", "staging"}, "we deploy nightly", &key, 10)
	assert.Equal(t, []string{"deploy"}, terms)
	assert.Equal(t, []string{"key", "text"}, fields)
}

func TestMergeMatchedFieldsDedupesSorted(t *testing.T) {
	assert.Equal(t, []string{"key", "text"}, mergeMatchedFields([]string{"text"}, []string{"key", "text"}))
}
