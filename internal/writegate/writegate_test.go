package writegate

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/elf/internal/config"
	"github.com/steveyegge/elf/internal/domain"
	"github.com/steveyegge/elf/internal/models"
)

func TestFindCJKPathText(t *testing.T) {
	n := NoteInput{Text: "plain english"}
	assert.Equal(t, "", findCJKPath(0, n))

	n.Text = "こんにちは"
	assert.Equal(t, "$.notes[0].text", findCJKPath(0, n))
}

func TestFindCJKPathSourceRefNested(t *testing.T) {
	n := NoteInput{
		Text:      "fine",
		SourceRef: json.RawMessage(`{"a":{"b":["ok","日本語"]}}`),
	}
	assert.Equal(t, "$.notes[0].source_ref.a.b[1]", findCJKPath(0, n))
}

func TestFindCJKPathStructuredFact(t *testing.T) {
	n := NoteInput{
		Text:       "fine",
		Structured: &StructuredInput{Facts: []FactInput{{Text: "中文事实"}}},
	}
	assert.Equal(t, "$.notes[0].structured.facts[0]", findCJKPath(0, n))
}

func TestValidateStructuredFieldsEvidenceBinding(t *testing.T) {
	note := NoteInput{
		Text: "The deploy window is Tuesdays at 9am.",
		Structured: &StructuredInput{
			Facts: []FactInput{{Text: "Tuesdays at 9am"}},
		},
	}
	require.NoError(t, validateStructuredFields(note, nil))

	quote := "the release happens every other week"
	note.Structured.Facts = []FactInput{{Text: "not in note text", EvidenceQuote: &quote}}
	err := validateStructuredFields(note, []string{"we said " + quote + " for this project"})
	assert.Error(t, err)

	note.Structured.Facts[0].EvidenceQuote = &quote
	note.Structured.Facts[0].Text = quote
	require.NoError(t, validateStructuredFields(note, []string{"we said " + quote + " for this project"}))
}

func TestValidateStructuredFieldsRejectsOversizedList(t *testing.T) {
	facts := make([]FactInput, maxStructuredListItems+1)
	note := NoteInput{Text: "x", Structured: &StructuredInput{Facts: facts}}
	assert.Error(t, validateStructuredFields(note, nil))
}

func TestCheckEvidenceBindingRequiresMatchingQuote(t *testing.T) {
	messages := []string{"the build broke on main this morning"}
	en := ExtractedNote{Evidence: []EvidenceRef{{MessageIndex: 0, Quote: "build broke on main"}}}
	assert.Equal(t, domain.RejectNoneCode, checkEvidenceBinding(en, messages))

	en.Evidence[0].Quote = "unrelated text"
	assert.Equal(t, domain.RejectEvidenceMismatch, checkEvidenceBinding(en, messages))

	en.Evidence = nil
	assert.Equal(t, domain.RejectEvidenceMismatch, checkEvidenceBinding(en, messages))
}

func TestApplyPolicyDowngradesBelowThreshold(t *testing.T) {
	minConf := float32(0.7)
	policy := config.MemoryPolicy{Rules: []config.MemoryPolicyRule{{MinConfidence: &minConf}}}

	en := ExtractedNote{Confidence: 0.5, Importance: 0.9}
	outcome, rule := applyPolicy(en, policy)
	assert.Equal(t, models.IngestOutcomeIgnore, outcome)
	require.NotNil(t, rule)
	assert.Equal(t, "0", *rule)

	en.Confidence = 0.95
	outcome, rule = applyPolicy(en, policy)
	assert.Equal(t, models.IngestOutcomeRemember, outcome)
	assert.Nil(t, rule)
}

func TestApplyPolicyScopesRuleByNoteType(t *testing.T) {
	minImportance := float32(0.9)
	noteType := string(models.NoteTypeFact)
	policy := config.MemoryPolicy{Rules: []config.MemoryPolicyRule{
		{NoteType: &noteType, MinImportance: &minImportance},
	}}

	en := ExtractedNote{Type: models.NoteTypePlan, Confidence: 0.9, Importance: 0.1}
	outcome, _ := applyPolicy(en, policy)
	assert.Equal(t, models.IngestOutcomeRemember, outcome, "rule should not apply to a different note type")
}

func TestUnchangedDetectsNoRealChange(t *testing.T) {
	now := time.Now()
	existing := &models.Note{
		Text: "same text", Importance: 0.5, Confidence: 0.5,
		SourceRef: json.RawMessage(`{}`),
	}
	note := NoteInput{Text: "same text", Importance: 0.5, Confidence: 0.5}
	assert.True(t, unchanged(existing, note, nil, json.RawMessage(`{}`)))

	note.Text = "different text"
	assert.False(t, unchanged(existing, note, nil, json.RawMessage(`{}`)))

	note.Text = "same text"
	expires := now.Add(24 * time.Hour)
	assert.False(t, unchanged(existing, note, &expires, json.RawMessage(`{}`)))
}

func TestToModelStructuredNilWhenEmpty(t *testing.T) {
	assert.Nil(t, toModelStructured(&StructuredInput{}))
	assert.Nil(t, toModelStructured(nil))

	summary := "a summary"
	out := toModelStructured(&StructuredInput{Summary: &summary, Facts: []FactInput{{Text: "f1"}}})
	require.NotNil(t, out)
	assert.Equal(t, "a summary", *out.Summary)
	assert.Equal(t, []string{"f1"}, out.Facts)
}
