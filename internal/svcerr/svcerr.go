// Package svcerr defines the error kinds surfaced across the write, index, and search paths.
// Every exported operation in the core returns one of these (wrapped with fmt.Errorf("%w", ...)
// when additional context is needed) rather than panicking on a validation or storage failure.
package svcerr

import "fmt"

// NonEnglishInput is returned when a field fails the English-only gate. Field is a JSON-path
// like "$.notes[2].text".
type NonEnglishInput struct {
	Field string
}

func (e NonEnglishInput) Error() string {
	return fmt.Sprintf("field %s is not English-only", e.Field)
}

// InvalidRequest covers missing/empty required fields, malformed structured payloads, unknown
// note types, and out-of-range values.
type InvalidRequest struct {
	Message string
}

func (e InvalidRequest) Error() string { return e.Message }

// ScopeDenied is returned when a scope is not allowed for the requested read or write.
type ScopeDenied struct {
	Message string
}

func (e ScopeDenied) Error() string { return e.Message }

// Conflict covers uniqueness violations and disallowed status transitions.
type Conflict struct {
	Message string
}

func (e Conflict) Error() string { return e.Message }

// NotFound is returned when a referenced note or predicate does not exist.
type NotFound struct {
	Message string
}

func (e NotFound) Error() string { return e.Message }

// Provider wraps an embedding/rerank/extractor failure after internal retries are exhausted.
type Provider struct {
	Message string
	Cause   error
}

func (e Provider) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provider error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("provider error: %s", e.Message)
}

func (e Provider) Unwrap() error { return e.Cause }

// Storage wraps a relational-store failure.
type Storage struct {
	Message string
	Cause   error
}

func (e Storage) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("storage error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("storage error: %s", e.Message)
}

func (e Storage) Unwrap() error { return e.Cause }

// Qdrant wraps a vector-store failure.
type Qdrant struct {
	Message string
	Cause   error
}

func (e Qdrant) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("vector store error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("vector store error: %s", e.Message)
}

func (e Qdrant) Unwrap() error { return e.Cause }
