package outbox

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelayGrowsThenSaturatesAtCap(t *testing.T) {
	base := 2 * time.Second
	cap := 30 * time.Second

	d1 := backoffDelay(base, cap, 1)
	d5 := backoffDelay(base, cap, 5)
	d20 := backoffDelay(base, cap, 20)

	assert.GreaterOrEqual(t, d1, time.Duration(0))
	assert.LessOrEqual(t, d1, cap)
	assert.LessOrEqual(t, d5, cap)
	assert.GreaterOrEqual(t, d20, cap*8/10)
	assert.LessOrEqual(t, d20, cap)
}

func TestBackoffDelayDefaultsWhenUnconfigured(t *testing.T) {
	d := backoffDelay(0, 0, 1)
	assert.Greater(t, d, time.Duration(0))
	assert.LessOrEqual(t, d, time.Minute)
}

func TestTruncateError(t *testing.T) {
	assert.Equal(t, "", truncateError(nil, 100))
	assert.Equal(t, "boom", truncateError(errors.New("boom"), 100))
	assert.Equal(t, "bo", truncateError(errors.New("boom"), 2))
	assert.Equal(t, "boom", truncateError(errors.New("boom"), 0))
}
