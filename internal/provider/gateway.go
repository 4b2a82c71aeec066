package provider

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	defaultMaxAttempts    = 3
	initialBackoff        = 500 * time.Millisecond
	defaultMaxConcurrency = 2
)

// Gateway wraps a Provider with the retry policy and a global concurrency
// ceiling. Transient failures (rate limits, timeouts) are retried with
// exponential backoff; auth and malformed-request failures propagate
// immediately. Concurrent calls beyond the ceiling queue on a weighted
// semaphore rather than fire, keeping batch runs inside provider rate limits.
type Gateway struct {
	provider    Provider
	maxAttempts int
	backoff     time.Duration
	sem         *semaphore.Weighted
}

// NewGateway creates a Gateway over the given provider. maxAttempts <= 0
// selects the default (3); maxConcurrency <= 0 selects the default (2).
func NewGateway(p Provider, maxAttempts, maxConcurrency int) *Gateway {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}
	return &Gateway{
		provider:    p,
		maxAttempts: maxAttempts,
		backoff:     initialBackoff,
		sem:         semaphore.NewWeighted(int64(maxConcurrency)),
	}
}

// Extract sends the request through the provider and returns the raw
// generated text.
func (g *Gateway) Extract(ctx context.Context, req Request) (string, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer g.sem.Release(1)

	var lastErr error
	for attempt := range g.maxAttempts {
		raw, err := g.provider.Generate(ctx, req)
		if err == nil {
			return raw, nil
		}
		if !retryable(err) {
			return "", err
		}

		lastErr = err
		if attempt < g.maxAttempts-1 {
			backoff := time.Duration(float64(g.backoff) * math.Pow(2, float64(attempt)))
			slog.Warn("provider call failed, retrying",
				"provider", g.provider.Name(),
				"kind", KindOf(err),
				"attempt", attempt+1,
				"backoff", backoff,
			)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return "", fmt.Errorf("giving up after %d attempts: %w", g.maxAttempts, lastErr)
}

// Name returns the wrapped provider's name.
func (g *Gateway) Name() string { return g.provider.Name() }

// Select returns the provider variant for the given name. The set is closed:
// anything else is a configuration error, caught here once rather than
// dispatched by string throughout the pipeline.
func Select(name, anthropicKey, openaiKey, ollamaURL string) (Provider, error) {
	switch name {
	case "anthropic":
		if anthropicKey == "" {
			return nil, fmt.Errorf("anthropic provider selected but no API key configured")
		}
		return NewAnthropic(anthropicKey), nil
	case "openai":
		if openaiKey == "" {
			return nil, fmt.Errorf("openai provider selected but no API key configured")
		}
		return NewOpenAI(openaiKey), nil
	case "ollama":
		return NewOllama(ollamaURL), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (expected anthropic, openai, or ollama)", name)
	}
}
