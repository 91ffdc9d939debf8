package vectorstore

import (
	"time"

	"github.com/qdrant/go-client/qdrant"
)

func boolPtr(b bool) *bool { return &b }

// ChunkPayload is the payload attached to every chunk point, grounded on admin.rs's payload
// construction in rebuild_qdrant (tenant_id/project_id/agent_id/scope/type/key/status/
// updated_at/expires_at/importance/confidence/embedding_version), extended with the chunk's
// own note_id/chunk_index since points here are chunk-granular, not note-granular.
type ChunkPayload struct {
	NoteID           string
	ChunkIndex       int32
	TenantID         string
	ProjectID        string
	AgentID          string
	Scope            string
	NoteType         string
	Key              *string
	Status           string
	UpdatedAt        time.Time
	ExpiresAt        *time.Time
	Importance       float32
	Confidence       float32
	EmbeddingVersion string
}

func (p ChunkPayload) toQdrant() map[string]any {
	m := map[string]any{
		"note_id":           p.NoteID,
		"chunk_index":       p.ChunkIndex,
		"tenant_id":         p.TenantID,
		"project_id":        p.ProjectID,
		"agent_id":          p.AgentID,
		"scope":             p.Scope,
		"type":              p.NoteType,
		"status":            p.Status,
		"updated_at":        formatRFC3339(p.UpdatedAt),
		"importance":        p.Importance,
		"confidence":        p.Confidence,
		"embedding_version": p.EmbeddingVersion,
	}
	if p.Key != nil {
		m["key"] = *p.Key
	} else {
		m["key"] = nil
	}
	if p.ExpiresAt != nil {
		m["expires_at"] = formatRFC3339(*p.ExpiresAt)
	} else {
		m["expires_at"] = nil
	}
	return m
}

func formatRFC3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func payloadString(payload map[string]*qdrant.Value, key string) (string, bool) {
	v, ok := payload[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.Kind.(*qdrant.Value_StringValue)
	if !ok {
		return "", false
	}
	return s.StringValue, true
}

func payloadI64(payload map[string]*qdrant.Value, key string) (int64, bool) {
	v, ok := payload[key]
	if !ok || v == nil {
		return 0, false
	}
	switch k := v.Kind.(type) {
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue, true
	case *qdrant.Value_DoubleValue:
		if k.DoubleValue == float64(int64(k.DoubleValue)) {
			return int64(k.DoubleValue), true
		}
	}
	return 0, false
}

func payloadTime(payload map[string]*qdrant.Value, key string) (time.Time, bool) {
	s, ok := payloadString(payload, key)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
