package search

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/steveyegge/elf/internal/config"
	"github.com/steveyegge/elf/internal/domain"
)

// resolveExpansionMode maps the configured mode string to ExpansionMode, defaulting to off for
// any unrecognized value.
func resolveExpansionMode(cfg *config.Config) ExpansionMode {
	switch cfg.Search.Expansion.Mode {
	case "always":
		return ExpansionAlways
	case "dynamic":
		return ExpansionDynamic
	default:
		return ExpansionOff
	}
}

// shouldExpandDynamic decides whether "dynamic" mode should trigger expansion for the first-pass
// candidate set: too few candidates, or a weak top score, both suggest the raw query under-
// retrieved.
func shouldExpandDynamic(candidateCount int, topScore float32, cfg config.SearchDynamic) bool {
	return candidateCount < int(cfg.MinCandidates) || topScore < cfg.MinTopScore
}

// normalizeQueries builds the final query set run through retrieval: optionally the original
// query first, then expansion-provided queries, deduped case-insensitively and capped at
// maxQueries.
func normalizeQueries(queries []string, original string, includeOriginal bool, maxQueries int) []string {
	var out []string
	seen := map[string]struct{}{}

	if includeOriginal {
		pushQuery(&out, seen, original)
	}
	for _, q := range queries {
		if len(out) >= maxQueries {
			break
		}
		pushQuery(&out, seen, q)
	}
	if len(out) > maxQueries {
		out = out[:maxQueries]
	}
	return out
}

func pushQuery(out *[]string, seen map[string]struct{}, value string) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || domain.ContainsCJK(trimmed) {
		return
	}
	key := strings.ToLower(trimmed)
	if _, ok := seen[key]; ok {
		return
	}
	seen[key] = struct{}{}
	*out = append(*out, trimmed)
}

// buildExpansionMessages builds the system/user chat messages sent to the LLM extractor
// capability to produce query variations, matching the JSON-schema-constrained prompt shape
// providers.Extractor expects.
func buildExpansionMessages(query string, maxQueries int, includeOriginal bool) []map[string]any {
	schema := map[string]any{"queries": []string{"string"}}
	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	schemaText := `{"queries": ["string"]}`
	if err == nil {
		schemaText = string(schemaBytes)
	}

	systemPrompt := "You are a query expansion engine for a memory retrieval system. " +
		"Output must be valid JSON only and must match the provided schema exactly. " +
		"Generate short English-only query variations that preserve the original intent. " +
		"Do not include any CJK characters. Do not add explanations or extra fields."

	userPrompt := "Return JSON matching this exact schema:\n" + schemaText +
		"\nConstraints:\n- MAX_QUERIES = " + strconv.Itoa(maxQueries) +
		"\n- INCLUDE_ORIGINAL = " + strconv.FormatBool(includeOriginal) +
		"\nOriginal query:\n" + query

	return []map[string]any{
		{"role": "system", "content": systemPrompt},
		{"role": "user", "content": userPrompt},
	}
}

// expansionModeLabel returns the stable string form recorded on the trace/explain row.
func expansionModeLabel(mode ExpansionMode) string {
	return string(mode)
}
