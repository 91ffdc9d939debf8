package writegate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/steveyegge/elf/internal/config"
	"github.com/steveyegge/elf/internal/models"
)

func TestScopeWriteAllowed(t *testing.T) {
	cfg := &config.Config{Scopes: config.Scopes{
		WriteAllowed: config.ScopeWriteAllowed{AgentPrivate: true, ProjectShared: false, OrgShared: true},
	}}
	assert.True(t, scopeWriteAllowed(models.ScopeAgentPrivate, cfg))
	assert.False(t, scopeWriteAllowed(models.ScopeProjectShared, cfg))
	assert.True(t, scopeWriteAllowed(models.ScopeOrgShared, cfg))
}
