package ai

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedEmbedder delays embedding calls to honour a request rate.
type RateLimitedEmbedder struct {
	next    Embedder
	limiter *rate.Limiter
}

// NewRateLimitedEmbedder wraps an embedder with a token bucket limiter.
// A non-positive rps returns the embedder unchanged.
func NewRateLimitedEmbedder(next Embedder, rps float64) Embedder {
	if rps <= 0 {
		return next
	}
	return &RateLimitedEmbedder{next: next, limiter: newLimiter(rps)}
}

// EmbedText waits for a token and then embeds.
func (e *RateLimitedEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return e.next.EmbedText(ctx, text)
}

// EmbedTexts waits for a single token per batch and then embeds.
func (e *RateLimitedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return e.next.EmbedTexts(ctx, texts)
}

// RateLimitedExtractor delays extraction calls to honour a request rate.
type RateLimitedExtractor struct {
	next    Extractor
	limiter *rate.Limiter
}

// NewRateLimitedExtractor wraps an extractor with a token bucket limiter.
// A non-positive rps returns the extractor unchanged.
func NewRateLimitedExtractor(next Extractor, rps float64) Extractor {
	if rps <= 0 {
		return next
	}
	return &RateLimitedExtractor{next: next, limiter: newLimiter(rps)}
}

// Extract waits for a token and then extracts.
func (e *RateLimitedExtractor) Extract(ctx context.Context, text string, mode Mode) (*Extraction, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return e.next.Extract(ctx, text, mode)
}

type rateLimitedProvider struct {
	inner     AIProvider
	embedder  Embedder
	extractor Extractor
}

// NewRateLimitedProvider applies one shared limiter to both services of a provider.
func NewRateLimitedProvider(inner AIProvider, rps float64) AIProvider {
	if rps <= 0 {
		return inner
	}
	limiter := newLimiter(rps)
	return &rateLimitedProvider{
		inner:     inner,
		embedder:  &RateLimitedEmbedder{next: inner.Embedder(), limiter: limiter},
		extractor: &RateLimitedExtractor{next: inner.Extractor(), limiter: limiter},
	}
}

func (p *rateLimitedProvider) Embedder() Embedder   { return p.embedder }
func (p *rateLimitedProvider) Extractor() Extractor { return p.extractor }
func (p *rateLimitedProvider) Close() error         { return p.inner.Close() }

func newLimiter(rps float64) *rate.Limiter {
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
