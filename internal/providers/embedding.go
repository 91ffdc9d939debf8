package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"lukechampine.com/blake3"

	"github.com/steveyegge/elf/internal/config"
	"github.com/steveyegge/elf/internal/svcerr"
	"github.com/steveyegge/elf/internal/telemetry"
)

var embedTracer = telemetry.Tracer("github.com/steveyegge/elf/internal/providers")

type httpEmbedder struct{}

func (e *httpEmbedder) Embed(ctx context.Context, cfg config.EmbeddingProviderConfig, texts []string) ([][]float32, error) {
	ensureProviderMetrics()
	ctx, span := embedTracer.Start(ctx, "providers.Embed")
	defer span.End()
	span.SetAttributes(attribute.String("elf.provider.id", cfg.ProviderID))

	if cfg.ProviderID == "local" {
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = localEmbed(int(cfg.Dimensions), text)
		}
		return out, nil
	}

	t0 := time.Now()
	var vectors [][]float32
	var err error
	for attempt := 0; attempt < extractorMaxAttempts; attempt++ {
		vectors, err = e.callRemote(ctx, cfg, texts)
		if err == nil || ctx.Err() != nil {
			break
		}
	}
	ms := float64(time.Since(t0).Milliseconds())
	if providerMetrics.duration != nil {
		providerMetrics.duration.Record(ctx, ms, metric.WithAttributes(attribute.String("elf.provider.capability", "embed")))
	}
	if providerMetrics.callsTotal != nil {
		providerMetrics.callsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("elf.provider.capability", "embed"),
			attribute.String("elf.provider.id", cfg.ProviderID),
		))
	}
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

func (e *httpEmbedder) callRemote(ctx context.Context, cfg config.EmbeddingProviderConfig, texts []string) ([][]float32, error) {
	client := &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond}
	url := cfg.APIBase + cfg.Path
	body, err := json.Marshal(map[string]any{
		"model":      cfg.Model,
		"input":      texts,
		"dimensions": cfg.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("providers: marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("providers: build embed request: %w", err)
	}
	applyAuthHeaders(req, cfg.APIKey, cfg.DefaultHeaders)

	resp, err := client.Do(req)
	if err != nil {
		return nil, svcerr.Provider{Message: "embedding request failed", Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, svcerr.Provider{Message: fmt.Sprintf("embedding provider returned status %d", resp.StatusCode)}
	}

	var parsed struct {
		Data []struct {
			Index     *int      `json:"index"`
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, svcerr.Provider{Message: "embedding response is not valid JSON", Cause: err}
	}

	type indexed struct {
		index int
		vec   []float32
	}
	items := make([]indexed, 0, len(parsed.Data))
	for i, d := range parsed.Data {
		idx := i
		if d.Index != nil {
			idx = *d.Index
		}
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		items = append(items, indexed{index: idx, vec: vec})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].index < items[j].index })

	out := make([][]float32, len(items))
	for i, it := range items {
		out[i] = it.vec
	}
	return out, nil
}

// localEmbed is a deterministic hashed-bag-of-words embedding: normalize to lowercase
// alphanumeric tokens, hash each token with blake3 to pick a signed dimension, then
// L2-normalize. Grounded exactly on elf-providers/src/embedding.rs's local_embed.
func localEmbed(dim int, text string) []float32 {
	vec := make([]float32, dim)
	if dim == 0 {
		return vec
	}

	normalized := normalizeASCIIAlnumLower(text)
	for _, token := range strings.Fields(normalized) {
		if len(token) < 2 {
			continue
		}
		sum := blake3.Sum256([]byte(token))
		index := int(uint32(sum[0]) | uint32(sum[1])<<8 | uint32(sum[2])<<16 | uint32(sum[3])<<24)
		index = index % dim
		if index < 0 {
			index += dim
		}
		sign := float32(1.0)
		if sum[4]&1 != 0 {
			sign = -1.0
		}
		vec[index] += sign
	}

	allZero := true
	for _, v := range vec {
		if v != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		sum := blake3.Sum256([]byte(text))
		index := int(uint32(sum[0]) | uint32(sum[1])<<8 | uint32(sum[2])<<16 | uint32(sum[3])<<24)
		index = index % dim
		if index < 0 {
			index += dim
		}
		vec[index] = 1.0
	}

	l2Normalize(vec)
	return vec
}

func normalizeASCIIAlnumLower(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, ch := range text {
		if ch < 128 && (('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ('0' <= ch && ch <= '9')) {
			if 'A' <= ch && ch <= 'Z' {
				ch += 'a' - 'A'
			}
			b.WriteRune(ch)
		} else {
			b.WriteRune(' ')
		}
	}
	return b.String()
}

func l2Normalize(vec []float32) {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm <= 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
}
