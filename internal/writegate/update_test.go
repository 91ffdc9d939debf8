package writegate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/steveyegge/elf/internal/models"
)

func TestUpdateChangedDetectsTextImportanceConfidenceExpiry(t *testing.T) {
	now := time.Now()
	existing := &models.Note{Text: "original", Importance: 0.5, Confidence: 0.5}

	assert.False(t, updateChanged(existing, "original", 0.5, 0.5, nil))
	assert.True(t, updateChanged(existing, "changed", 0.5, 0.5, nil))
	assert.True(t, updateChanged(existing, "original", 0.9, 0.5, nil))

	expires := now.Add(24 * time.Hour)
	assert.True(t, updateChanged(existing, "original", 0.5, 0.5, &expires))
}

func TestUpdateChangedToleratesFloatEpsilon(t *testing.T) {
	existing := &models.Note{Text: "x", Importance: 0.300000012, Confidence: 0.7}
	assert.False(t, updateChanged(existing, "x", 0.3, 0.7, nil), "a value that only differs by float round-tripping noise must not register as a change")
}
