package writegate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/steveyegge/elf/internal/access"
	"github.com/steveyegge/elf/internal/models"
)

func TestResolveListAccessScopes(t *testing.T) {
	assert.Nil(t, resolveListAccessScopes(scopePtr(models.ScopeAgentPrivate)), "an explicit agent_private request carries no extra access filter")
	assert.Equal(t, []models.Scope{models.ScopeOrgShared}, resolveListAccessScopes(scopePtr(models.ScopeOrgShared)))
	assert.Equal(t,
		[]models.Scope{models.ScopeProjectShared, models.ScopeOrgShared},
		resolveListAccessScopes(nil),
	)
}

func TestScopeAllowed(t *testing.T) {
	allowed := []string{"agent_private", "project_shared"}
	assert.True(t, scopeAllowed(models.ScopeAgentPrivate, allowed))
	assert.False(t, scopeAllowed(models.ScopeOrgShared, allowed))
}

func TestHistoricalReadAllowed(t *testing.T) {
	owner := "agent-1"
	other := "agent-2"
	note := &models.Note{Scope: models.ScopeProjectShared, AgentID: owner}

	assert.True(t, historicalReadAllowed(note, owner, []models.Scope{models.ScopeProjectShared}, nil))
	assert.False(t, historicalReadAllowed(note, other, []models.Scope{models.ScopeProjectShared}, nil), "no grant, no ownership, should be denied")

	grants := access.NewGrantSet([]models.SpaceGrant{{Scope: models.ScopeProjectShared, SpaceOwnerAgent: owner}})
	assert.True(t, historicalReadAllowed(note, other, []models.Scope{models.ScopeProjectShared}, grants), "a matching grant allows the non-owner")

	privateNote := &models.Note{Scope: models.ScopeAgentPrivate, AgentID: owner}
	assert.False(t, historicalReadAllowed(privateNote, other, []models.Scope{models.ScopeAgentPrivate}, grants), "agent_private is never grant-visible")
}

func scopePtr(s models.Scope) *models.Scope { return &s }
