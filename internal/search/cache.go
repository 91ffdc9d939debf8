package search

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"lukechampine.com/blake3"
)

// hashCacheKey hex-encodes the blake3 digest of payload's canonical JSON encoding, the same
// construction cache.rs uses for both the expansion and rerank cache keys.
func hashCacheKey(payload any) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

// cacheKeyPrefix returns the first 12 hex characters of key, a stable short form suitable for
// log lines and the explain trace without leaking the whole key.
func cacheKeyPrefix(key string) string {
	if len(key) <= 12 {
		return key
	}
	return key[:12]
}

type expansionCacheKeyPayload struct {
	Kind           string  `json:"kind"`
	SchemaVersion  int     `json:"schema_version"`
	Query          string  `json:"query"`
	MaxQueries     int     `json:"max_queries"`
	IncludeOriginal bool   `json:"include_original"`
	ProviderID     string  `json:"provider_id"`
	Model          string  `json:"model"`
	Temperature    float32 `json:"temperature"`
}

// buildExpansionCacheKey builds the expansion cache lookup key from every input that changes
// the LLM's output: the query text, expansion bounds, and the exact provider/model/temperature
// combination in use.
func buildExpansionCacheKey(query string, maxQueries int, includeOriginal bool, providerID, model string, temperature float32) (string, error) {
	return hashCacheKey(expansionCacheKeyPayload{
		Kind: "expansion", SchemaVersion: 1, Query: query, MaxQueries: maxQueries,
		IncludeOriginal: includeOriginal, ProviderID: providerID, Model: model, Temperature: temperature,
	})
}

type candidateSignature struct {
	ChunkID   uuid.UUID `json:"chunk_id"`
	UpdatedAt string    `json:"updated_at"`
}

type rerankCacheKeyPayload struct {
	Kind       string               `json:"kind"`
	SchemaVersion int               `json:"schema_version"`
	Query      string               `json:"query"`
	ProviderID string               `json:"provider_id"`
	Model      string               `json:"model"`
	Candidates []candidateSignature `json:"candidates"`
}

// RerankCandidateKey is the (chunk_id, updated_at) pair the rerank cache key and cached-score
// lookup are both built from.
type RerankCandidateKey struct {
	ChunkID   uuid.UUID
	UpdatedAt time.Time
}

// buildRerankCacheKey builds the rerank cache lookup key. Because the cache is only valid for
// the exact ordered candidate set it was computed against, the key folds in every candidate's
// (chunk_id, updated_at) signature — any candidate set change invalidates the cached scores.
func buildRerankCacheKey(query, providerID, model string, candidates []RerankCandidateKey) (string, error) {
	sigs := make([]candidateSignature, len(candidates))
	for i, c := range candidates {
		sigs[i] = candidateSignature{ChunkID: c.ChunkID, UpdatedAt: c.UpdatedAt.UTC().Format(time.RFC3339Nano)}
	}
	return hashCacheKey(rerankCacheKeyPayload{
		Kind: "rerank", SchemaVersion: 1, Query: query, ProviderID: providerID, Model: model, Candidates: sigs,
	})
}

// buildCachedScores looks up each candidate's cached rerank score by its (chunk_id,
// updated_at as UTC RFC3339Nano) signature against the cached payload's positional score list. It
// returns (nil, false) if any candidate's signature is missing from the payload or the lengths
// mismatch, since a partial or stale cache entry must not be used.
func buildCachedScores(payloadCandidates []candidateSignature, payloadScores []float32, candidates []RerankCandidateKey) ([]float32, bool) {
	if len(payloadCandidates) != len(payloadScores) {
		return nil, false
	}
	index := make(map[string]float32, len(payloadCandidates))
	for i, sig := range payloadCandidates {
		index[sig.ChunkID.String()+"|"+sig.UpdatedAt] = payloadScores[i]
	}

	out := make([]float32, len(candidates))
	for i, c := range candidates {
		key := c.ChunkID.String() + "|" + c.UpdatedAt.UTC().Format(time.RFC3339Nano)
		score, ok := index[key]
		if !ok {
			return nil, false
		}
		out[i] = score
	}
	return out, true
}
