package writegate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/steveyegge/elf/internal/domain"
	"github.com/steveyegge/elf/internal/models"
	"github.com/steveyegge/elf/internal/svcerr"
)

const (
	defaultEvidenceMinQuotes     = 1
	defaultEvidenceMaxQuotes     = 5
	defaultEvidenceMaxQuoteChars = 500
)

// extractedPayload is the JSON shape Extract is prompted to return, grounded on
// add_event.rs's note schema.
type extractedPayload struct {
	Notes []struct {
		Type            string  `json:"type"`
		Key             *string `json:"key"`
		Text            string  `json:"text"`
		Importance      float32 `json:"importance"`
		Confidence      float32 `json:"confidence"`
		TTLDays         *int64  `json:"ttl_days"`
		ScopeSuggestion *string `json:"scope_suggestion"`
		Reason          string  `json:"reason"`
		Evidence        []struct {
			MessageIndex int    `json:"message_index"`
			Quote        string `json:"quote"`
		} `json:"evidence"`
	} `json:"notes"`
}

// AddEvent runs SPEC_FULL.md §4.6: english-gate the transcript, extract candidate notes,
// enforce evidence binding, cap the batch, run the policy filter, and (unless dry_run) hand
// the policy-approved notes to AddNote. Grounded on add_event.rs's pipeline and the
// crates/elf-service/src/lib.rs request/response shapes it builds on.
func (g *Gate) AddEvent(ctx context.Context, req AddEventRequest) (*AddEventResponse, error) {
	for i, msg := range req.Messages {
		if !domain.IsEnglishNaturalLanguage(msg) {
			return nil, svcerr.NonEnglishInput{Field: fmt.Sprintf("$.messages[%d].content", i)}
		}
	}

	raw, err := g.extract(ctx, req.Messages)
	if err != nil {
		return nil, err
	}

	extracted := raw.Notes
	if uint32(len(extracted)) > g.Config.Memory.MaxNotesPerAddEvent {
		extracted = extracted[:g.Config.Memory.MaxNotesPerAddEvent]
	}

	now := g.Now()
	resp := &AddEventResponse{}
	var approved []ExtractedNote

	for _, rn := range extracted {
		en := ExtractedNote{
			Type: models.NoteType(rn.Type), Key: rn.Key, Text: rn.Text,
			Importance: rn.Importance, Confidence: rn.Confidence, TTLDays: rn.TTLDays,
			Reason: rn.Reason,
		}
		if rn.ScopeSuggestion != nil {
			s := models.Scope(*rn.ScopeSuggestion)
			en.ScopeSuggestion = &s
		}
		for _, ev := range rn.Evidence {
			en.Evidence = append(en.Evidence, EvidenceRef{MessageIndex: ev.MessageIndex, Quote: ev.Quote})
		}

		if code := checkEvidenceBinding(en, req.Messages); code != domain.RejectNoneCode {
			resp.Decisions = append(resp.Decisions, EventNoteDecision{
				Extracted: en, Outcome: models.IngestOutcomeIgnore, RejectCode: code,
			})
			continue
		}

		outcome, matchedRule := applyPolicy(en, g.Config.Memory.Policy)
		if err := recordIngestDecision(ctx, g, req, en, outcome, matchedRule, now); err != nil {
			return nil, err
		}

		resp.Decisions = append(resp.Decisions, EventNoteDecision{Extracted: en, Outcome: outcome, MatchedRule: matchedRule})
		if outcome == models.IngestOutcomeRemember {
			approved = append(approved, en)
		}
	}

	if req.DryRun || len(approved) == 0 {
		return resp, nil
	}

	addResp, err := g.AddNote(ctx, buildAddNoteRequest(req, approved))
	if err != nil {
		return nil, err
	}

	resultIdx := 0
	for i := range resp.Decisions {
		if resp.Decisions[i].Outcome != models.IngestOutcomeRemember {
			continue
		}
		r := addResp.Results[resultIdx]
		resp.Decisions[i].NoteResult = &r
		resultIdx++
	}
	return resp, nil
}

func buildAddNoteRequest(req AddEventRequest, approved []ExtractedNote) AddNoteRequest {
	addReq := AddNoteRequest{
		TenantID: req.TenantID, ProjectID: req.ProjectID, AgentID: req.AgentID,
		EvidenceMessages: req.Messages,
	}
	for _, en := range approved {
		scope := req.DefaultScope
		if en.ScopeSuggestion != nil {
			scope = *en.ScopeSuggestion
		}
		sourceRef, _ := json.Marshal(map[string]any{"evidence": en.Evidence})
		addReq.Notes = append(addReq.Notes, NoteInput{
			Scope: scope, Type: en.Type, Key: en.Key, Text: en.Text,
			Importance: en.Importance, Confidence: en.Confidence, TTLDays: en.TTLDays,
			SourceRef: sourceRef,
		})
	}
	return addReq
}

func (g *Gate) extract(ctx context.Context, messages []string) (*extractedPayload, error) {
	msgMaps := make([]map[string]any, len(messages))
	for i, m := range messages {
		msgMaps[i] = map[string]any{"index": i, "content": m}
	}
	raw, err := g.Extractor.Extract(ctx, g.Config.Providers.LLMExtractor, msgMaps)
	if err != nil {
		return nil, svcerr.Provider{Message: "extract notes from event", Cause: err}
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, svcerr.Provider{Message: "re-encode extractor output", Cause: err}
	}
	var payload extractedPayload
	if err := json.Unmarshal(encoded, &payload); err != nil {
		return nil, svcerr.Provider{Message: "extractor output did not match note schema", Cause: err}
	}
	return &payload, nil
}

// checkEvidenceBinding enforces evidence_min_quotes/evidence_max_quotes/evidence_max_quote_chars
// and that every quote actually appears at its claimed message index.
func checkEvidenceBinding(en ExtractedNote, messages []string) domain.RejectCode {
	if len(en.Evidence) < defaultEvidenceMinQuotes || len(en.Evidence) > defaultEvidenceMaxQuotes {
		return domain.RejectEvidenceMismatch
	}
	for _, ev := range en.Evidence {
		if len(ev.Quote) > defaultEvidenceMaxQuoteChars {
			return domain.RejectEvidenceMismatch
		}
		if !domain.EvidenceMatches(messages, ev.MessageIndex, ev.Quote) {
			return domain.RejectEvidenceMismatch
		}
	}
	return domain.RejectNoneCode
}
