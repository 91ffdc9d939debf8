// Package vectorstore adapts the per-chunk search index to Qdrant: collection bootstrap with
// a named dense vector plus a named BM25 sparse vector, point upsert/delete keyed by chunk ID,
// and the payload-filtered query used by the search pipeline.
//
// Grounded on original_source/packages/elf-storage/src/qdrant.rs (collection/field-index
// bootstrap) and crates/elf-service/src/admin.rs (payload shape, named-vector point
// construction), translated from the qdrant-client Rust crate's builder style to
// github.com/qdrant/go-client's request-struct style.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/steveyegge/elf/internal/config"
	"github.com/steveyegge/elf/internal/svcerr"
	"github.com/steveyegge/elf/internal/telemetry"
)

// DenseVectorName, BM25VectorName, and BM25Model name the two named vectors every collection
// built by this package carries, matching elf-storage/src/qdrant.rs's constants exactly.
const (
	DenseVectorName = "dense"
	BM25VectorName  = "bm25"
	BM25Model       = "qdrant/bm25"
)

var (
	tracer = telemetry.Tracer("github.com/steveyegge/elf/internal/vectorstore")
	meter  = telemetry.Meter("github.com/steveyegge/elf/internal/vectorstore")
)

// Store wraps a Qdrant gRPC client scoped to one collection.
type Store struct {
	client     *qdrant.Client
	collection string
	vectorDim  uint32
}

// New dials Qdrant and returns a Store scoped to cfg.Collection. It does not create the
// collection; call EnsureCollection during startup bootstrap.
func New(cfg config.Qdrant) (*Store, error) {
	return newWithCollection(cfg, cfg.Collection)
}

// NewDocs returns a second Store scoped to cfg.DocsCollection, mirroring the Rust
// QdrantStore::new_with_collection split between the memory-note collection and the
// supplemental document collection (SPEC_FULL.md §4.12).
func NewDocs(cfg config.Qdrant) (*Store, error) {
	return newWithCollection(cfg, cfg.DocsCollection)
}

func newWithCollection(cfg config.Qdrant, collection string) (*Store, error) {
	host, port, err := splitHostPort(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: %w", err)
	}
	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, svcerr.Qdrant{Message: "connect to qdrant", Cause: err}
	}
	return &Store{client: client, collection: collection, vectorDim: cfg.VectorDim}, nil
}

// Close releases the underlying gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) startSpan(ctx context.Context, op string) (context.Context, func(err error)) {
	ctx, span := tracer.Start(ctx, "vectorstore."+op)
	span.SetAttributes(attribute.String("elf.vectorstore.collection", s.collection))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
