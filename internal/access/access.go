// Package access implements the read-visibility and space-grant rules shared by list, search,
// and update: which agent may see which note, and how project/org shared spaces are granted.
package access

import (
	"time"

	"github.com/steveyegge/elf/internal/models"
)

// GrantKey identifies one (scope, space-owning agent) pair a grant set can be tested against.
type GrantKey struct {
	Scope           models.Scope
	SpaceOwnerAgent string
}

// GrantSet is the set of shared-space grants a requesting agent holds, keyed for O(1) lookup.
type GrantSet map[GrantKey]struct{}

// NewGrantSet builds a GrantSet from loaded, unrevoked grants.
func NewGrantSet(grants []models.SpaceGrant) GrantSet {
	set := make(GrantSet, len(grants))
	for _, g := range grants {
		set[GrantKey{Scope: g.Scope, SpaceOwnerAgent: g.SpaceOwnerAgent}] = struct{}{}
	}
	return set
}

func (s GrantSet) has(scope models.Scope, spaceOwnerAgent string) bool {
	_, ok := s[GrantKey{Scope: scope, SpaceOwnerAgent: spaceOwnerAgent}]
	return ok
}

// Has is the exported form of has, for callers outside this package that need the same
// grant-membership test NoteReadAllowed uses internally (list's relaxed historical-read check).
func (s GrantSet) Has(scope models.Scope, spaceOwnerAgent string) bool {
	return s.has(scope, spaceOwnerAgent)
}

// IsSharedScope reports whether scope is one of the non-private, grant-eligible scopes.
func IsSharedScope(scope models.Scope) bool {
	return scope == models.ScopeProjectShared || scope == models.ScopeOrgShared
}

// NoteReadAllowed decides whether requesterAgentID may read note, given the scopes the caller
// is allowed to see at all, the grants the requester holds, and the current time (for
// expiry/status checks). This mirrors add_note's own scope-precedence rules: active status,
// not expired, scope in the allowed set, agent_private requires exact agent match, shared
// scopes require either ownership or an explicit grant.
func NoteReadAllowed(
	note *models.Note,
	requesterAgentID string,
	allowedScopes []models.Scope,
	grants GrantSet,
	now time.Time,
) bool {
	if note.Status != models.NoteStatusActive {
		return false
	}
	if note.ExpiresAt != nil && !note.ExpiresAt.After(now) {
		return false
	}
	if !scopeIn(allowedScopes, note.Scope) {
		return false
	}
	if note.Scope == models.ScopeAgentPrivate {
		return note.AgentID == requesterAgentID
	}
	if !IsSharedScope(note.Scope) {
		return false
	}
	if note.AgentID == requesterAgentID {
		return true
	}
	return grants.has(note.Scope, note.AgentID)
}

func scopeIn(scopes []models.Scope, scope models.Scope) bool {
	for _, s := range scopes {
		if s == scope {
			return true
		}
	}
	return false
}
