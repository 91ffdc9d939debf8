package search

import (
	"sort"
	"strings"

	"github.com/steveyegge/elf/internal/config"
	"github.com/steveyegge/elf/internal/domain"
)

// buildDenseEmbeddingInput appends a trimmed project context description to the query text, for
// the dense embedding call that represents the query in the fusion retrieval source.
func buildDenseEmbeddingInput(query string, projectContextDescription *string) string {
	if projectContextDescription == nil {
		return query
	}
	trimmed := strings.TrimSpace(*projectContextDescription)
	if trimmed == "" {
		return query
	}
	return query + "\n\nProject context:\n" + trimmed
}

// normalizeASCIIAlnumLower lowercases ASCII letters/digits and replaces everything else with a
// space, the shared normalization step behind tokenize_query/tokenize_text_terms/
// scope_description_boost.
func normalizeASCIIAlnumLower(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r >= 'A' && r <= 'Z' {
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(' ')
		}
	}
	return b.String()
}

// tokenizeQuery lowercases, strips non-alnum, dedupes (order-preserving), drops length-1
// tokens, and caps at maxTerms.
func tokenizeQuery(query string, maxTerms int) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, tok := range strings.Fields(normalizeASCIIAlnumLower(query)) {
		if len(tok) < 2 {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
		if len(out) >= maxTerms {
			break
		}
	}
	return out
}

// tokenizeTextTerms lowercases, strips non-alnum, dedupes into a set, drops length-1 tokens,
// and caps at maxTerms.
func tokenizeTextTerms(text string, maxTerms int) map[string]struct{} {
	out := map[string]struct{}{}
	if maxTerms == 0 {
		return out
	}
	for _, tok := range strings.Fields(normalizeASCIIAlnumLower(text)) {
		if len(tok) < 2 {
			continue
		}
		out[tok] = struct{}{}
		if len(out) >= maxTerms {
			break
		}
	}
	return out
}

// lexicalOverlapRatio is the fraction of queryTokens present in text's token set, the raw input
// to the deterministic lexical bonus term.
func lexicalOverlapRatio(queryTokens []string, text string, maxTextTerms int) float32 {
	if len(queryTokens) == 0 {
		return 0
	}
	textTerms := tokenizeTextTerms(text, maxTextTerms)
	if len(textTerms) == 0 {
		return 0
	}
	matched := 0
	for _, tok := range queryTokens {
		if _, ok := textTerms[tok]; ok {
			matched++
		}
	}
	return float32(matched) / float32(len(queryTokens))
}

// scopeDescriptionBoost scores how much of tokens appear in description's token set, scaled by
// weight and the match fraction. Returns 0 if description is empty, CJK, or weight is
// non-positive.
func scopeDescriptionBoost(tokens []string, description string, weight float32) float32 {
	if weight <= 0 || len(tokens) == 0 {
		return 0
	}
	trimmed := strings.TrimSpace(description)
	if trimmed == "" || domain.ContainsCJK(trimmed) {
		return 0
	}

	descTokens := map[string]struct{}{}
	for _, tok := range strings.Fields(normalizeASCIIAlnumLower(trimmed)) {
		if len(tok) < 2 {
			continue
		}
		descTokens[tok] = struct{}{}
	}
	if len(descTokens) == 0 {
		return 0
	}

	matched := 0
	for _, tok := range tokens {
		if _, ok := descTokens[tok]; ok {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}
	return weight * (float32(matched) / float32(len(tokens)))
}

// buildScopeContextBoostByScope resolves a per-scope boost from cfg.Context.ScopeDescriptions,
// one scope_description_boost call per configured scope.
func buildScopeContextBoostByScope(tokens []string, ctx *config.Context) map[string]float32 {
	out := map[string]float32{}
	if ctx == nil || ctx.ScopeBoostWeight <= 0 || len(tokens) == 0 || ctx.ScopeDescriptions == nil {
		return out
	}
	for scope, description := range ctx.ScopeDescriptions {
		if boost := scopeDescriptionBoost(tokens, description, ctx.ScopeBoostWeight); boost > 0 {
			out[scope] = boost
		}
	}
	return out
}

// matchTermsInText reports which of tokens appear in text and/or key (lowercased substring
// match), and which fields ("text"/"key") matched at all — the inputs the explain trace records
// for the lexical bonus term. matchedTerms is capped at maxTerms.
func matchTermsInText(tokens []string, text string, key *string, maxTerms int) (matchedTerms, matchedFields []string) {
	if len(tokens) == 0 {
		return nil, nil
	}
	lowerText := strings.ToLower(text)
	var lowerKey string
	hasKey := key != nil
	if hasKey {
		lowerKey = strings.ToLower(*key)
	}

	fieldSet := map[string]struct{}{}
	for _, tok := range tokens {
		matched := false
		if strings.Contains(lowerText, tok) {
			fieldSet["text"] = struct{}{}
			matched = true
		}
		if hasKey && strings.Contains(lowerKey, tok) {
			fieldSet["key"] = struct{}{}
			matched = true
		}
		if matched {
			matchedTerms = append(matchedTerms, tok)
		}
		if len(matchedTerms) >= maxTerms {
			break
		}
	}

	for field := range fieldSet {
		matchedFields = append(matchedFields, field)
	}
	sort.Strings(matchedFields)
	return matchedTerms, matchedFields
}

// mergeMatchedFields appends extra onto base, then sorts and dedupes, matching
// merge_matched_fields's fold of the structured-field source's matched fields into the fusion
// source's.
func mergeMatchedFields(base []string, extra []string) []string {
	out := append([]string{}, base...)
	out = append(out, extra...)
	sort.Strings(out)

	deduped := out[:0]
	var last string
	for i, f := range out {
		if i == 0 || f != last {
			deduped = append(deduped, f)
			last = f
		}
	}
	return deduped
}
