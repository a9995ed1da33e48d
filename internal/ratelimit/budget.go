// Package ratelimit implements the API quota budget policy and a token
// bucket pacer for outbound request spacing.
package ratelimit

import (
	"time"

	"github.com/halverson/starwatch/internal/crawler"
)

// BudgetConfig holds rate budget policy configuration.
type BudgetConfig struct {
	// LowWater is the remaining-call threshold that triggers a pause.
	LowWater int
	// Pad is added to every pause so the reset has definitely happened.
	Pad time.Duration
}

// Budget decides how long to pause based on the quota reported by the API.
// Missing or partial quota information never blocks the crawl.
type Budget struct {
	lowWater int
	pad      time.Duration
}

// NewBudget creates a Budget. Non-positive fields fall back to defaults:
// a low-water mark of 50 calls and a five second pad.
func NewBudget(cfg BudgetConfig) *Budget {
	lowWater := cfg.LowWater
	if lowWater <= 0 {
		lowWater = 50
	}
	pad := cfg.Pad
	if pad <= 0 {
		pad = 5 * time.Second
	}
	return &Budget{
		lowWater: lowWater,
		pad:      pad,
	}
}

// Evaluate returns how long to pause before the next request. A nil
// snapshot or one without a reset time means the API gave us nothing to
// act on, so the crawl proceeds.
func (b *Budget) Evaluate(snapshot *crawler.RateBudgetSnapshot, now time.Time) time.Duration {
	if snapshot == nil {
		return 0
	}
	if snapshot.Remaining > b.lowWater {
		return 0
	}
	if snapshot.ResetAt.IsZero() {
		return 0
	}
	until := snapshot.ResetAt.Sub(now)
	if until < 0 {
		until = 0
	}
	return until + b.pad
}
