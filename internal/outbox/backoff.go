package outbox

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// backoffDelay computes the FAILED→claimable delay for the given attempt count, matching
// SPEC_FULL.md §4.7: min(cap, base * 2^(attempts-1)) with jitter, so the first failure waits
// about base. It is built on
// backoff.ExponentialBackOff (the teacher's own retry primitive, see store.go's
// newServerRetryBackoff) rather than hand-rolled arithmetic, configuring the same
// InitialInterval/MaxInterval/Multiplier/RandomizationFactor shape the library already
// provides instead of reimplementing jittered exponential growth from scratch.
func backoffDelay(base, cap time.Duration, attempts int32) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if cap <= 0 {
		cap = time.Minute
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = base
	bo.MaxInterval = cap
	bo.Multiplier = 2
	bo.RandomizationFactor = 0.2
	bo.Reset()

	// ExponentialBackOff.NextBackOff() advances one exponential step per call relative to its
	// own internal state and its first call returns InitialInterval; stepping it `attempts` times
	// reproduces base*2^(attempts-1) (capped at MaxInterval) with the library's own jitter applied
	// on the final step.
	var delay time.Duration
	steps := attempts
	if steps < 1 {
		steps = 1
	}
	// Guard against an unbounded loop if attempts is ever corrupted to a huge value; the
	// delay saturates at MaxInterval long before this would matter in practice.
	if steps > 62 {
		steps = 62
	}
	for i := int32(0); i < steps; i++ {
		delay = bo.NextBackOff()
	}
	if delay > cap || delay == backoff.Stop {
		delay = cap
	}
	return delay
}
