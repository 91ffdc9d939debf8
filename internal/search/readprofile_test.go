package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/steveyegge/elf/internal/config"
	"github.com/steveyegge/elf/internal/models"
)

func TestResolveReadProfile(t *testing.T) {
	cfg := config.ReadProfiles{
		PrivateOnly:        []string{"agent_private"},
		PrivatePlusProject: []string{"agent_private", "project_shared"},
		AllScopes:          []string{"agent_private", "project_shared", "org_shared"},
	}

	assert.Equal(t, []models.Scope{models.ScopeAgentPrivate}, resolveReadProfile("private_only", cfg))
	assert.Equal(t, []models.Scope{models.ScopeAgentPrivate, models.ScopeProjectShared}, resolveReadProfile("private_plus_project", cfg))
	assert.Equal(t, []models.Scope{models.ScopeAgentPrivate, models.ScopeProjectShared, models.ScopeOrgShared}, resolveReadProfile("all_scopes", cfg))
	assert.Equal(t, []models.Scope{models.ScopeAgentPrivate, models.ScopeProjectShared}, resolveReadProfile("", cfg), "unrecognized/empty profile defaults to private_plus_project")
}
