package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

// payloadIndex is one required payload field index, matching the (field_name, payload_type,
// field_type) triples in elf-storage/src/qdrant.rs's DOCS_SEARCH_FILTER_INDEXES.
type payloadIndex struct {
	field string
	kind  qdrant.FieldType
}

// chunkFilterIndexes are the payload fields the search pipeline filters chunk candidates on.
var chunkFilterIndexes = []payloadIndex{
	{"tenant_id", qdrant.FieldType_FieldTypeKeyword},
	{"project_id", qdrant.FieldType_FieldTypeKeyword},
	{"agent_id", qdrant.FieldType_FieldTypeKeyword},
	{"scope", qdrant.FieldType_FieldTypeKeyword},
	{"type", qdrant.FieldType_FieldTypeKeyword},
	{"status", qdrant.FieldType_FieldTypeKeyword},
	{"note_id", qdrant.FieldType_FieldTypeKeyword},
	{"embedding_version", qdrant.FieldType_FieldTypeKeyword},
	{"updated_at", qdrant.FieldType_FieldTypeDatetime},
}

// docFilterIndexes mirrors elf-storage's DOCS_SEARCH_FILTER_INDEXES for the supplemental
// document collection (SPEC_FULL.md §4.12).
var docFilterIndexes = []payloadIndex{
	{"scope", qdrant.FieldType_FieldTypeKeyword},
	{"status", qdrant.FieldType_FieldTypeKeyword},
	{"doc_type", qdrant.FieldType_FieldTypeKeyword},
	{"agent_id", qdrant.FieldType_FieldTypeKeyword},
	{"updated_at", qdrant.FieldType_FieldTypeDatetime},
	{"doc_ts", qdrant.FieldType_FieldTypeDatetime},
	{"thread_id", qdrant.FieldType_FieldTypeKeyword},
	{"domain", qdrant.FieldType_FieldTypeKeyword},
	{"repo", qdrant.FieldType_FieldTypeKeyword},
}

// EnsureCollection creates the collection with a named dense cosine vector plus a named BM25
// sparse vector if it does not already exist, then ensures the chunk filter payload indexes.
// Grounded exactly on QdrantStore::ensure_collection / ensure_payload_indexes.
func (s *Store) EnsureCollection(ctx context.Context) error {
	ctx, end := s.startSpan(ctx, "EnsureCollection")
	var err error
	defer func() { end(err) }()

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("vectorstore: check collection exists: %w", err)
	}
	if !exists {
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
				DenseVectorName: {Size: uint64(s.vectorDim), Distance: qdrant.Distance_Cosine},
			}),
			SparseVectorsConfig: qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
				BM25VectorName: {Modifier: qdrant.Modifier_Idf.Enum()},
			}),
		})
		if err != nil && !isAlreadyExists(err) {
			return fmt.Errorf("vectorstore: create collection: %w", err)
		}
		err = nil
	}

	return s.ensurePayloadIndexes(ctx, chunkFilterIndexes)
}

func (s *Store) ensurePayloadIndexes(ctx context.Context, indexes []payloadIndex) error {
	for _, idx := range indexes {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      idx.field,
			FieldType:      idx.kind.Enum(),
			Wait:           boolPtr(true),
		})
		if err != nil && !isAlreadyExists(err) {
			return fmt.Errorf("vectorstore: create field index %s: %w", idx.field, err)
		}
	}
	return nil
}

func isAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || errors.Is(err, errAlreadyExists)
}

var errAlreadyExists = errors.New("already exists")
