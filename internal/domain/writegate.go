package domain

import (
	"regexp"

	"github.com/steveyegge/elf/internal/config"
	"github.com/steveyegge/elf/internal/models"
)

// RejectCode is a stable, wire-visible reject reason returned in a write response's
// reason_code field.
type RejectCode string

const (
	RejectNoneCode          RejectCode = ""
	RejectEmpty             RejectCode = "REJECT_EMPTY"
	RejectCJKCode           RejectCode = "REJECT_CJK"
	RejectTooLong           RejectCode = "REJECT_TOO_LONG"
	RejectSecret            RejectCode = "REJECT_SECRET"
	RejectInvalidType       RejectCode = "REJECT_INVALID_TYPE"
	RejectScopeDenied       RejectCode = "REJECT_SCOPE_DENIED"
	RejectEvidenceMismatch  RejectCode = "REJECT_EVIDENCE_MISMATCH"
	RejectStructuredInvalid RejectCode = "REJECT_STRUCTURED_INVALID"
)

// secretPatterns matches common secret-looking tokens (cloud access keys, bearer tokens,
// private key PEM headers, common vendor API key prefixes); generic "key=value" assignments
// are not matched. The original Rust
// source's writegate module was not present in the retrieved reference pack, so this pattern
// set is authored directly from the spec's "matching a configured secret pattern" requirement
// rather than transliterated; it is intentionally conservative (favors missing a secret over
// rejecting ordinary prose).
var secretPatterns = regexp.MustCompile(
	`(?i)(AKIA[0-9A-Z]{16}|-----BEGIN [A-Z ]*PRIVATE KEY-----|sk-[A-Za-z0-9]{20,}|Bearer\s+[A-Za-z0-9._-]{20,}|ghp_[A-Za-z0-9]{20,})`,
)

// validNoteTypes is the closed set note.Type must belong to.
var validNoteTypes = map[models.NoteType]bool{
	models.NoteTypePlan:       true,
	models.NoteTypeFact:       true,
	models.NoteTypePreference: true,
	models.NoteTypeConstraint: true,
	models.NoteTypeDecision:   true,
	models.NoteTypeProfile:    true,
}

// Writegate runs the per-note reject-code checks: empty text, disallowed CJK, length, secret
// patterns, unknown type, and scope write permission. Returns RejectNoneCode on success.
func Writegate(text string, noteType models.NoteType, scope models.Scope, cfg *config.Config) RejectCode {
	if text == "" {
		return RejectEmpty
	}
	if cfg.Security.RejectCJK && ContainsCJK(text) {
		return RejectCJKCode
	}
	if uint32(len(text)) > cfg.Memory.MaxNoteChars {
		return RejectTooLong
	}
	if cfg.Security.RedactSecretsOnWrite && secretPatterns.MatchString(text) {
		return RejectSecret
	}
	if !validNoteTypes[noteType] {
		return RejectInvalidType
	}
	if !scopeWritable(scope, cfg) {
		return RejectScopeDenied
	}
	return RejectNoneCode
}

func scopeWritable(scope models.Scope, cfg *config.Config) bool {
	allowed := false
	for _, s := range cfg.Scopes.Allowed {
		if s == string(scope) {
			allowed = true
			break
		}
	}
	if !allowed {
		return false
	}

	switch scope {
	case models.ScopeAgentPrivate:
		return cfg.Scopes.WriteAllowed.AgentPrivate
	case models.ScopeProjectShared:
		return cfg.Scopes.WriteAllowed.ProjectShared
	case models.ScopeOrgShared:
		return cfg.Scopes.WriteAllowed.OrgShared
	default:
		return false
	}
}
