// Package providers implements the three capability facades memory extraction and search
// depend on: Embed, Rerank, and Extract. Each has a "local" deterministic fallback (no network
// call, grounded on the corresponding Rust local_* implementation) and a default HTTP-backed
// implementation for a real provider, following the capability-facade shape of
// steveyegge-beads' compact.haikuClient: a small struct wrapping an SDK/HTTP client, retried
// calls, and otel metrics registered once via sync.Once.
package providers

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/metric"

	"github.com/steveyegge/elf/internal/config"
	"github.com/steveyegge/elf/internal/telemetry"
)

// Embedder produces dense vectors for a batch of texts.
type Embedder interface {
	Embed(ctx context.Context, cfg config.EmbeddingProviderConfig, texts []string) ([][]float32, error)
}

// Reranker scores a query against a batch of candidate documents.
type Reranker interface {
	Rerank(ctx context.Context, cfg config.ProviderConfig, query string, docs []string) ([]float32, error)
}

// Extractor turns a conversation transcript into the LLM-authored extraction payload
// (candidate notes with evidence quotes) that the policy filter then accepts or rejects.
type Extractor interface {
	Extract(ctx context.Context, cfg config.LLMProviderConfig, messages []map[string]any) (map[string]any, error)
}

// Facade bundles the three capabilities the way Rust's Providers struct does, so orchestration
// code depends on one injected value instead of three.
type Facade struct {
	Embedding Embedder
	Rerank    Reranker
	Extractor Extractor
}

// Default builds the facade's default providers: real HTTP/SDK implementations that each fall
// back to a local deterministic algorithm when cfg.ProviderID == "local".
func Default() *Facade {
	return &Facade{
		Embedding: &httpEmbedder{},
		Rerank:    &httpReranker{},
		Extractor: &httpExtractor{},
	}
}

var (
	providerMetricsOnce sync.Once
	providerMetrics     struct {
		callsTotal metric.Int64Counter
		duration   metric.Float64Histogram
	}
)

func initProviderMetrics() {
	m := telemetry.Meter("github.com/steveyegge/elf/internal/providers")
	providerMetrics.callsTotal, _ = m.Int64Counter("elf.provider.calls_total",
		metric.WithDescription("Provider capability calls, by capability and provider_id"),
	)
	providerMetrics.duration, _ = m.Float64Histogram("elf.provider.request.duration_ms",
		metric.WithDescription("Provider capability call duration"),
		metric.WithUnit("ms"),
	)
}

func ensureProviderMetrics() {
	providerMetricsOnce.Do(initProviderMetrics)
}
