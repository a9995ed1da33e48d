package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/halverson/starwatch/internal/crawler"
)

func TestBudgetEvaluateAboveLowWaterProceeds(t *testing.T) {
	t.Parallel()

	b := NewBudget(BudgetConfig{LowWater: 50, Pad: 5 * time.Second})
	now := time.Unix(1700000000, 0).UTC()

	snapshot := &crawler.RateBudgetSnapshot{
		Limit:     5000,
		Remaining: 4000,
		ResetAt:   now.Add(30 * time.Minute),
	}
	require.Zero(t, b.Evaluate(snapshot, now))
}

func TestBudgetEvaluateBelowLowWaterWaitsUntilReset(t *testing.T) {
	t.Parallel()

	b := NewBudget(BudgetConfig{LowWater: 50, Pad: 5 * time.Second})
	now := time.Unix(1700000000, 0).UTC()

	snapshot := &crawler.RateBudgetSnapshot{
		Limit:     5000,
		Remaining: 12,
		ResetAt:   now.Add(90 * time.Second),
	}
	require.Equal(t, 95*time.Second, b.Evaluate(snapshot, now))
}

func TestBudgetEvaluateExactLowWaterTriggersPause(t *testing.T) {
	t.Parallel()

	b := NewBudget(BudgetConfig{LowWater: 50, Pad: 5 * time.Second})
	now := time.Unix(1700000000, 0).UTC()

	snapshot := &crawler.RateBudgetSnapshot{
		Remaining: 50,
		ResetAt:   now.Add(time.Minute),
	}
	require.Equal(t, 65*time.Second, b.Evaluate(snapshot, now))
}

func TestBudgetEvaluateResetInPastWaitsOnlyPad(t *testing.T) {
	t.Parallel()

	b := NewBudget(BudgetConfig{LowWater: 50, Pad: 5 * time.Second})
	now := time.Unix(1700000000, 0).UTC()

	snapshot := &crawler.RateBudgetSnapshot{
		Remaining: 1,
		ResetAt:   now.Add(-10 * time.Minute),
	}
	require.Equal(t, 5*time.Second, b.Evaluate(snapshot, now))
}

func TestBudgetEvaluateMissingInfoFailsOpen(t *testing.T) {
	t.Parallel()

	b := NewBudget(BudgetConfig{})
	now := time.Unix(1700000000, 0).UTC()

	require.Zero(t, b.Evaluate(nil, now))
	require.Zero(t, b.Evaluate(&crawler.RateBudgetSnapshot{Remaining: 2}, now))
}

func TestBudgetDefaults(t *testing.T) {
	t.Parallel()

	b := NewBudget(BudgetConfig{})
	now := time.Unix(1700000000, 0).UTC()

	// Default low water is 50, default pad is five seconds.
	snapshot := &crawler.RateBudgetSnapshot{
		Remaining: 49,
		ResetAt:   now,
	}
	require.Equal(t, 5*time.Second, b.Evaluate(snapshot, now))

	snapshot.Remaining = 51
	require.Zero(t, b.Evaluate(snapshot, now))
}
