package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"lukechampine.com/blake3"

	"github.com/steveyegge/elf/internal/config"
	"github.com/steveyegge/elf/internal/svcerr"
)

type httpReranker struct{}

func (r *httpReranker) Rerank(ctx context.Context, cfg config.ProviderConfig, query string, docs []string) ([]float32, error) {
	ensureProviderMetrics()
	ctx, span := embedTracer.Start(ctx, "providers.Rerank")
	defer span.End()
	span.SetAttributes(attribute.String("elf.provider.id", cfg.ProviderID))

	if cfg.ProviderID == "local" {
		return localRerankDispatch(cfg.Model, query, docs), nil
	}

	t0 := time.Now()
	var scores []float32
	var err error
	for attempt := 0; attempt < extractorMaxAttempts; attempt++ {
		scores, err = r.callRemote(ctx, cfg, query, docs)
		if err == nil || ctx.Err() != nil {
			break
		}
	}
	ms := float64(time.Since(t0).Milliseconds())
	if providerMetrics.duration != nil {
		providerMetrics.duration.Record(ctx, ms, metric.WithAttributes(attribute.String("elf.provider.capability", "rerank")))
	}
	if providerMetrics.callsTotal != nil {
		providerMetrics.callsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("elf.provider.capability", "rerank"),
			attribute.String("elf.provider.id", cfg.ProviderID),
		))
	}
	return scores, err
}

func (r *httpReranker) callRemote(ctx context.Context, cfg config.ProviderConfig, query string, docs []string) ([]float32, error) {
	client := &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond}
	url := cfg.APIBase + cfg.Path
	body, err := json.Marshal(map[string]any{"model": cfg.Model, "query": query, "documents": docs})
	if err != nil {
		return nil, fmt.Errorf("providers: marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("providers: build rerank request: %w", err)
	}
	applyAuthHeaders(req, cfg.APIKey, cfg.DefaultHeaders)

	resp, err := client.Do(req)
	if err != nil {
		return nil, svcerr.Provider{Message: "rerank request failed", Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, svcerr.Provider{Message: fmt.Sprintf("rerank provider returned status %d", resp.StatusCode)}
	}

	var parsed struct {
		Results []struct {
			Index          int      `json:"index"`
			RelevanceScore *float64 `json:"relevance_score"`
			Score          *float64 `json:"score"`
		} `json:"results"`
		Data []struct {
			Index          int      `json:"index"`
			RelevanceScore *float64 `json:"relevance_score"`
			Score          *float64 `json:"score"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, svcerr.Provider{Message: "rerank response is not valid JSON", Cause: err}
	}

	scores := make([]float32, len(docs))
	entries := parsed.Results
	if len(entries) == 0 {
		entries = parsed.Data
	}
	for _, item := range entries {
		var score float64
		switch {
		case item.RelevanceScore != nil:
			score = *item.RelevanceScore
		case item.Score != nil:
			score = *item.Score
		default:
			continue
		}
		if item.Index >= 0 && item.Index < len(scores) {
			scores[item.Index] = float32(score)
		}
	}
	return scores, nil
}

// localNoiseCallCounter varies the noise seed across calls, matching the Rust
// LOCAL_NOISE_CALL_COUNTER atomic used to simulate reranker instability in tests.
var localNoiseCallCounter uint64

func localRerankDispatch(model, query string, docs []string) []float32 {
	if std, ok := parseLocalNoisyModel(model); ok {
		return localRerankNoisy(query, docs, std)
	}
	return localRerank(query, docs)
}

func parseLocalNoisyModel(model string) (float32, bool) {
	const prefix = "local-token-overlap-noisy@"
	if !strings.HasPrefix(model, prefix) {
		return 0, false
	}
	std, err := strconv.ParseFloat(strings.TrimPrefix(model, prefix), 32)
	if err != nil {
		return 0, false
	}
	if std < 0 {
		std = 0
	}
	return float32(std), true
}

func localRerank(query string, docs []string) []float32 {
	queryTokens := tokenizeASCIIAlnum(query)
	scores := make([]float32, len(docs))
	if len(queryTokens) == 0 {
		return scores
	}
	denom := float32(len(queryTokens))
	for i, doc := range docs {
		docTokens := tokenizeASCIIAlnum(doc)
		matched := 0
		for t := range queryTokens {
			if docTokens[t] {
				matched++
			}
		}
		scores[i] = float32(matched) / denom
	}
	return scores
}

func localRerankNoisy(query string, docs []string, noiseStd float32) []float32 {
	base := localRerank(query, docs)
	if noiseStd <= 0 {
		return base
	}

	queryHash := blake3.Sum256([]byte(query))
	var seed uint64
	for i := 0; i < 8; i++ {
		seed |= uint64(queryHash[i]) << (8 * i)
	}
	callIdx := atomic.AddUint64(&localNoiseCallCounter, 1) - 1
	seed ^= callIdx * 0x9E3779B97F4A7C15

	out := make([]float32, len(base))
	for i, score := range base {
		rng := newXorShift64(seed ^ (uint64(i) * 0x9E3779B97F4A7C15))
		u := rng.nextFloat32()
		signed := (u * 2.0) - 1.0
		noisy := score + signed*noiseStd
		out[i] = clamp01(noisy)
	}
	return out
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// xorShift64 is a minimal deterministic PRNG, grounded on rerank.rs's XorShift64.
type xorShift64 struct{ state uint64 }

func newXorShift64(seed uint64) *xorShift64 {
	if seed == 0 {
		seed = 0x4D595DF4D0F33173
	}
	return &xorShift64{state: seed}
}

func (r *xorShift64) nextUint64() uint64 {
	x := r.state
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	r.state = x
	return x
}

func (r *xorShift64) nextFloat32() float32 {
	bits := uint32(r.nextUint64() >> 40)
	return float32(bits) / float32(uint32(1)<<24)
}

func tokenizeASCIIAlnum(text string) map[string]bool {
	normalized := normalizeASCIIAlnumLower(text)
	out := make(map[string]bool)
	for _, token := range strings.Fields(normalized) {
		if len(token) < 2 {
			continue
		}
		out[token] = true
	}
	return out
}
