package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/steveyegge/elf/internal/svcerr"
)

// UpsertChunk writes one chunk's dense embedding, BM25 sparse document, and payload as a
// single point keyed by chunkID. Grounded on admin.rs's rebuild_qdrant point construction:
// a PointStruct with both a dense Vector and a BM25 Document under their named-vector slots.
func (s *Store) UpsertChunk(ctx context.Context, chunkID uuid.UUID, dense []float32, text string, payload ChunkPayload) error {
	ctx, end := s.startSpan(ctx, "UpsertChunk")
	var err error
	defer func() { end(err) }()

	vectors := qdrant.NewVectorsMap(map[string]*qdrant.Vector{
		DenseVectorName: qdrant.NewVector(dense...),
		BM25VectorName:  qdrant.NewVectorDocument(&qdrant.Document{Text: text, Model: BM25Model}),
	})

	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(chunkID.String()),
		Vectors: vectors,
		Payload: qdrant.NewValueMap(payload.toQdrant()),
	}

	waitUpsert := true
	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         []*qdrant.PointStruct{point},
		Wait:           &waitUpsert,
	})
	if err != nil {
		err = svcerr.Qdrant{Message: fmt.Sprintf("upsert chunk %s", chunkID), Cause: err}
		return err
	}
	return nil
}

// DeleteNoteChunks removes every point belonging to noteID, used when a note is superseded or
// deleted and its chunks are about to be replaced or retired.
func (s *Store) DeleteNoteChunks(ctx context.Context, noteID uuid.UUID) error {
	ctx, end := s.startSpan(ctx, "DeleteNoteChunks")
	var err error
	defer func() { end(err) }()

	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("note_id", noteID.String()),
		},
	}
	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelectorFilter(filter),
	})
	if err != nil {
		err = svcerr.Qdrant{Message: fmt.Sprintf("delete chunks for note %s", noteID), Cause: err}
		return err
	}
	return nil
}
