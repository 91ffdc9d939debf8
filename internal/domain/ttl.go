package domain

import (
	"time"

	"github.com/steveyegge/elf/internal/config"
	"github.com/steveyegge/elf/internal/models"
)

// ComputeExpiresAt resolves a note's expiry: an explicit positive ttlDays wins; otherwise the
// per-note-type default from config is used; 0 means never expires. The result is never at or
// before now.
func ComputeExpiresAt(ttlDays *int64, noteType models.NoteType, cfg *config.Config, now time.Time) *time.Time {
	days := int64(0)
	if ttlDays != nil && *ttlDays > 0 {
		days = *ttlDays
	} else {
		switch noteType {
		case models.NoteTypePlan:
			days = cfg.Lifecycle.TTLDays.Plan
		case models.NoteTypeFact:
			days = cfg.Lifecycle.TTLDays.Fact
		case models.NoteTypePreference:
			days = cfg.Lifecycle.TTLDays.Preference
		case models.NoteTypeConstraint:
			days = cfg.Lifecycle.TTLDays.Constraint
		case models.NoteTypeDecision:
			days = cfg.Lifecycle.TTLDays.Decision
		case models.NoteTypeProfile:
			days = cfg.Lifecycle.TTLDays.Profile
		}
	}

	if days <= 0 {
		return nil
	}

	expires := now.Add(time.Duration(days) * 24 * time.Hour)
	return &expires
}
