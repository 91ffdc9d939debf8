package vectorstore

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RebuildChunk is the subset of relstore.RebuildRow this package needs to reconstruct one
// point. Kept as a local struct (rather than importing internal/relstore) so vectorstore has
// no dependency on the relational store package; the admin command that drives a rebuild
// wires the two together.
type RebuildChunk struct {
	ChunkID          uuid.UUID
	ChunkIndex       int32
	ChunkText        string
	NoteID           uuid.UUID
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
	Vec              []float32
}

// RebuildReport tallies a rebuild pass, matching admin.rs's RebuildReport exactly.
type RebuildReport struct {
	RebuiltCount       uint64
	MissingVectorCount uint64
	ErrorCount         uint64
}

// Rebuild repopulates the collection from the relational store's chunk rows, one upsert per
// row. Rows whose embedding is absent (LEFT JOIN miss) or whose dimension mismatches are
// tallied rather than treated as a fatal error, matching rebuild_qdrant's per-row error
// isolation.
func Rebuild(ctx context.Context, store *Store, rows []RebuildChunk) (RebuildReport, error) {
	var report RebuildReport
	for _, row := range rows {
		if row.Vec == nil {
			report.MissingVectorCount++
			continue
		}
		if uint32(len(row.Vec)) != store.vectorDim {
			report.ErrorCount++
			continue
		}

		payload := ChunkPayload{
			NoteID:           row.NoteID.String(),
			ChunkIndex:       row.ChunkIndex,
			TenantID:         row.TenantID,
			ProjectID:        row.ProjectID,
			AgentID:          row.AgentID,
			Scope:            row.Scope,
			NoteType:         row.NoteType,
			Key:              row.Key,
			Status:           row.Status,
			UpdatedAt:        row.UpdatedAt,
			ExpiresAt:        row.ExpiresAt,
			Importance:       row.Importance,
			Confidence:       row.Confidence,
			EmbeddingVersion: row.EmbeddingVersion,
		}

		if err := store.UpsertChunk(ctx, row.ChunkID, row.Vec, row.ChunkText, payload); err != nil {
			report.ErrorCount++
			continue
		}
		report.RebuiltCount++
	}
	return report, nil
}
