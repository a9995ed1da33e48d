package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Pacer spaces outbound API requests with a token bucket.
type Pacer struct {
	limiter *rate.Limiter
}

// PacerConfig holds pacer configuration.
type PacerConfig struct {
	// RPS is the sustained requests-per-second rate. Non-positive
	// disables pacing.
	RPS float64
	// Burst is the bucket size. Values below one are raised to one.
	Burst int
}

// NewPacer creates a Pacer.
func NewPacer(cfg PacerConfig) *Pacer {
	r := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Pacer{
		limiter: rate.NewLimiter(r, burst),
	}
}

// Wait blocks until a token is available, respecting the context.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pacer wait: %w", err)
	}
	return nil
}
