package search

import (
	"github.com/steveyegge/elf/internal/config"
	"github.com/steveyegge/elf/internal/models"
)

// resolveReadProfile maps a caller-selected read profile to the scope set it is allowed to see,
// defaulting to private_plus_project for an empty/unrecognized profile (the common case: an
// agent's own notes plus whatever its project has shared).
func resolveReadProfile(profile string, cfg config.ReadProfiles) []models.Scope {
	switch profile {
	case "private_only":
		return toScopes(cfg.PrivateOnly)
	case "all_scopes":
		return toScopes(cfg.AllScopes)
	default:
		return toScopes(cfg.PrivatePlusProject)
	}
}

func toScopes(raw []string) []models.Scope {
	out := make([]models.Scope, len(raw))
	for i, s := range raw {
		out[i] = models.Scope(s)
	}
	return out
}
