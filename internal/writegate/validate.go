package writegate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/steveyegge/elf/internal/domain"
	"github.com/steveyegge/elf/internal/svcerr"
)

const (
	maxStructuredListItems = 64
	maxStructuredItemChars = 1000
)

// findCJKPath returns the JSON-path-style field name of the first CJK-containing string leaf
// in a note's text/key/structured fields/source_ref, or "" if none is found. Mirrors
// add_note.rs's per-note CJK sweep, which walks the same four surfaces before running
// structured-field validation or writegate.
func findCJKPath(noteIdx int, n NoteInput) string {
	prefix := fmt.Sprintf("$.notes[%d]", noteIdx)

	if domain.ContainsCJK(n.Text) {
		return prefix + ".text"
	}
	if n.Key != nil && domain.ContainsCJK(*n.Key) {
		return prefix + ".key"
	}
	if n.Structured != nil {
		if n.Structured.Summary != nil && domain.ContainsCJK(*n.Structured.Summary) {
			return prefix + ".structured.summary"
		}
		for i, f := range n.Structured.Facts {
			if domain.ContainsCJK(f.Text) {
				return fmt.Sprintf("%s.structured.facts[%d]", prefix, i)
			}
		}
		for i, c := range n.Structured.Concepts {
			if domain.ContainsCJK(c) {
				return fmt.Sprintf("%s.structured.concepts[%d]", prefix, i)
			}
		}
	}
	if path := findCJKInJSON(n.SourceRef, prefix+".source_ref"); path != "" {
		return path
	}
	return ""
}

// findCJKInJSON recursively walks an arbitrary JSON value looking for a string leaf containing
// CJK, returning the dotted/indexed path to the first one found.
func findCJKInJSON(raw json.RawMessage, path string) string {
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return findCJKInValue(v, path)
}

func findCJKInValue(v any, path string) string {
	switch t := v.(type) {
	case string:
		if domain.ContainsCJK(t) {
			return path
		}
	case map[string]any:
		for k, child := range t {
			if found := findCJKInValue(child, path+"."+k); found != "" {
				return found
			}
		}
	case []any:
		for i, child := range t {
			if found := findCJKInValue(child, fmt.Sprintf("%s[%d]", path, i)); found != "" {
				return found
			}
		}
	}
	return ""
}

// validateStructuredFields enforces the list-length and per-item-length bounds plus
// evidence-binding for facts, grounded on structured_fields.rs's own validation pass. noteText
// and evidenceMessages are the two sources a fact's text may be bound against: the note's own
// text, or — when this note came from add_event — one of the conversation's evidence quotes.
func validateStructuredFields(n NoteInput, evidenceMessages []string) error {
	s := n.Structured
	if s == nil {
		return nil
	}

	if len(s.Facts) > maxStructuredListItems || len(s.Concepts) > maxStructuredListItems {
		return svcerr.InvalidRequest{Message: "structured field list exceeds max item count"}
	}
	if s.Summary != nil && len(*s.Summary) > maxStructuredItemChars {
		return svcerr.InvalidRequest{Message: "structured summary exceeds max item length"}
	}
	for _, f := range s.Facts {
		if len(f.Text) > maxStructuredItemChars {
			return svcerr.InvalidRequest{Message: "structured fact exceeds max item length"}
		}
		if !factIsEvidenceBound(f, n.Text, evidenceMessages) {
			return svcerr.InvalidRequest{Message: "structured fact is not evidence-bound"}
		}
	}
	for _, c := range s.Concepts {
		if len(c) > maxStructuredItemChars {
			return svcerr.InvalidRequest{Message: "structured concept exceeds max item length"}
		}
	}
	return nil
}

// factIsEvidenceBound reports whether a fact's text is grounded in the note's own text, or in
// the evidence quote the caller attached to it (which must itself appear in one of the
// conversation's messages). Mirrors structured_fields.rs's fact_is_evidence_bound.
func factIsEvidenceBound(f FactInput, noteText string, evidenceMessages []string) bool {
	if f.Text != "" && strings.Contains(noteText, f.Text) {
		return true
	}
	if f.EvidenceQuote == nil {
		return false
	}
	return strings.Contains(*f.EvidenceQuote, f.Text) && containsQuoteInAnyMessage(evidenceMessages, *f.EvidenceQuote)
}

func containsQuoteInAnyMessage(messages []string, quote string) bool {
	for i := range messages {
		if domain.EvidenceMatches(messages, i, quote) {
			return true
		}
	}
	return false
}
