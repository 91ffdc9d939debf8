// Package idgen generates the opaque 128-bit identifiers used for notes, chunks, outbox
// entries, versions, and traces.
package idgen

import "github.com/google/uuid"

// New returns a new random (v4) identifier.
func New() uuid.UUID {
	return uuid.New()
}

// Parse parses a canonical string form identifier.
func Parse(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}
