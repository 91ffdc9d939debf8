package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/steveyegge/elf/internal/config"
	"github.com/steveyegge/elf/internal/svcerr"
)

const extractorMaxAttempts = 3

type httpExtractor struct{}

// Extract dispatches to the Anthropic SDK when provider_id is "anthropic" (the capability's
// default real-provider wiring), otherwise POSTs an OpenAI-chat-style request, matching
// elf-providers/src/extractor.rs's generic HTTP shape; "local" has no network-capable
// implementation upstream, so it returns an empty extraction rather than inventing behavior
// the Rust source never defines.
func (e *httpExtractor) Extract(ctx context.Context, cfg config.LLMProviderConfig, messages []map[string]any) (map[string]any, error) {
	ensureProviderMetrics()
	ctx, span := embedTracer.Start(ctx, "providers.Extract")
	defer span.End()
	span.SetAttributes(attribute.String("elf.provider.id", cfg.ProviderID))

	if cfg.ProviderID == "local" {
		return map[string]any{"notes": []any{}}, nil
	}

	t0 := time.Now()
	var result map[string]any
	var err error
	if cfg.ProviderID == "anthropic" {
		result, err = e.extractAnthropic(ctx, cfg, messages)
	} else {
		result, err = e.extractHTTP(ctx, cfg, messages)
	}
	ms := float64(time.Since(t0).Milliseconds())
	if providerMetrics.duration != nil {
		providerMetrics.duration.Record(ctx, ms, metric.WithAttributes(attribute.String("elf.provider.capability", "extract")))
	}
	if providerMetrics.callsTotal != nil {
		providerMetrics.callsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("elf.provider.capability", "extract"),
			attribute.String("elf.provider.id", cfg.ProviderID),
		))
	}
	return result, err
}

func (e *httpExtractor) extractAnthropic(ctx context.Context, cfg config.LLMProviderConfig, messages []map[string]any) (map[string]any, error) {
	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))

	var transcript bytes.Buffer
	enc := json.NewEncoder(&transcript)
	if err := enc.Encode(messages); err != nil {
		return nil, fmt.Errorf("providers: encode extract transcript: %w", err)
	}

	var lastErr error
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = time.Duration(cfg.TimeoutMS) * time.Millisecond * extractorMaxAttempts

	for attempt := 0; attempt < extractorMaxAttempts; attempt++ {
		msg, callErr := client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(cfg.Model),
			MaxTokens: 1024,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(transcript.String())),
			},
		})
		if callErr != nil {
			lastErr = callErr
			wait := bo.NextBackOff()
			if wait == backoff.Stop {
				break
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}
		if len(msg.Content) == 0 {
			lastErr = fmt.Errorf("extractor: empty response content")
			continue
		}
		var parsed map[string]any
		if err := json.Unmarshal([]byte(msg.Content[0].Text), &parsed); err == nil {
			return parsed, nil
		}
		lastErr = fmt.Errorf("extractor: response content is not valid JSON")
	}
	return nil, svcerr.Provider{Message: "extractor response is not valid JSON", Cause: lastErr}
}

func (e *httpExtractor) extractHTTP(ctx context.Context, cfg config.LLMProviderConfig, messages []map[string]any) (map[string]any, error) {
	client := &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond}
	url := cfg.APIBase + cfg.Path

	var lastErr error
	for i := 0; i < extractorMaxAttempts; i++ {
		parsed, err := e.requestOnce(ctx, client, url, cfg, messages)
		if err == nil {
			return parsed, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (e *httpExtractor) requestOnce(
	ctx context.Context, client *http.Client, url string, cfg config.LLMProviderConfig, messages []map[string]any,
) (map[string]any, error) {
	body, err := json.Marshal(map[string]any{
		"model":       cfg.Model,
		"temperature": cfg.Temperature,
		"messages":    messages,
	})
	if err != nil {
		return nil, fmt.Errorf("providers: marshal extract request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("providers: build extract request: %w", err)
	}
	applyAuthHeaders(req, cfg.APIKey, cfg.DefaultHeaders)

	resp, err := client.Do(req)
	if err != nil {
		return nil, svcerr.Provider{Message: "extract request failed", Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, svcerr.Provider{Message: fmt.Sprintf("extractor provider returned status %d", resp.StatusCode)}
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, svcerr.Provider{Message: "extractor response is not valid JSON", Cause: err}
	}
	parsed, ok := parseExtractorJSON(raw)
	if !ok {
		return nil, svcerr.Provider{Message: "extractor response is missing JSON content"}
	}
	return parsed, nil
}

// parseExtractorJSON mirrors extractor.rs's parse_extractor_json: unwrap an
// OpenAI-chat-style choices[0].message.content JSON string, or accept a bare JSON object.
func parseExtractorJSON(raw map[string]any) (map[string]any, bool) {
	if choices, ok := raw["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if msg, ok := choice["message"].(map[string]any); ok {
				if content, ok := msg["content"].(string); ok {
					var parsed map[string]any
					if err := json.Unmarshal([]byte(content), &parsed); err == nil {
						return parsed, true
					}
					return nil, false
				}
			}
		}
	}
	return raw, true
}
