package ledgergate_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	lg "github.com/ineyio/ledgergate"
)

func TestBucketRefillsAndCapsAtCapacity(t *testing.T) {
	bucket := lg.Bucket{
		Capacity:        10,
		Tokens:          1,
		RefillPerSecond: 3,
		LastRefillTS:    100,
	}

	bucket.Refill(103)
	assert.Equal(t, uint64(10), bucket.Tokens)
	assert.Equal(t, int64(103), bucket.LastRefillTS)
}

func TestBucketRefillNoopOnStalledClock(t *testing.T) {
	bucket := lg.Bucket{
		Capacity:        10,
		Tokens:          2,
		RefillPerSecond: 3,
		LastRefillTS:    100,
	}

	bucket.Refill(100)
	assert.Equal(t, uint64(2), bucket.Tokens)
	assert.Equal(t, int64(100), bucket.LastRefillTS)

	bucket.Refill(50)
	assert.Equal(t, uint64(2), bucket.Tokens)
	assert.Equal(t, int64(100), bucket.LastRefillTS)
}

func TestBucketRefillNeverExceedsCapacity(t *testing.T) {
	cases := []struct {
		name     string
		capacity uint64
		tokens   uint64
		rate     uint64
		now      int64
	}{
		{"zero rate", 10, 5, 0, 1_000},
		{"exact fill", 10, 4, 3, 102},
		{"overshoot", 10, 9, 100, 200},
		{"adversarial elapsed", 10, 0, math.MaxUint64, math.MaxInt64},
		{"adversarial rate", math.MaxUint64, math.MaxUint64 - 1, math.MaxUint64, math.MaxInt64},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bucket := lg.Bucket{
				Capacity:        tc.capacity,
				Tokens:          tc.tokens,
				RefillPerSecond: tc.rate,
				LastRefillTS:    100,
			}
			bucket.Refill(tc.now)
			assert.LessOrEqual(t, bucket.Tokens, tc.capacity)
		})
	}
}

func TestQuotaRollsOverAfterWindow(t *testing.T) {
	window := lg.QuotaWindow{
		PeriodSeconds: 60,
		PeriodStartTS: 0,
		PeriodLimit:   100,
		Remaining:     0,
	}

	window.Roll(61)
	assert.Equal(t, int64(61), window.PeriodStartTS)
	assert.Equal(t, uint64(100), window.Remaining)
}

func TestQuotaNoopInsideWindow(t *testing.T) {
	window := lg.QuotaWindow{
		PeriodSeconds: 60,
		PeriodStartTS: 0,
		PeriodLimit:   100,
		Remaining:     7,
	}

	window.Roll(59)
	assert.Equal(t, int64(0), window.PeriodStartTS)
	assert.Equal(t, uint64(7), window.Remaining)
}

func TestQuotaSkippedWindowsCollapseIntoOneReset(t *testing.T) {
	window := lg.QuotaWindow{
		PeriodSeconds: 60,
		PeriodStartTS: 0,
		PeriodLimit:   100,
		Remaining:     0,
	}

	// Five whole windows elapsed; the reset lands at now, not at a window
	// boundary, and the budget is refilled exactly once.
	window.Roll(301)
	assert.Equal(t, int64(301), window.PeriodStartTS)
	assert.Equal(t, uint64(100), window.Remaining)
}

func TestQuotaDisabledByNonPositivePeriod(t *testing.T) {
	window := lg.QuotaWindow{
		PeriodSeconds: 0,
		PeriodStartTS: 5,
		PeriodLimit:   100,
		Remaining:     3,
	}

	window.Roll(1_000_000)
	assert.Equal(t, int64(5), window.PeriodStartTS)
	assert.Equal(t, uint64(3), window.Remaining)
}

func TestDynamicPricingRisesWithUtilization(t *testing.T) {
	lowUtil := lg.DynamicPrice(1_000, 100, 90, 5_000)
	highUtil := lg.DynamicPrice(1_000, 100, 10, 5_000)

	assert.Greater(t, highUtil, lowUtil)
	assert.Equal(t, uint64(1_000), lg.DynamicPrice(1_000, 100, 100, 5_000))
}

func TestDynamicPricingMonotoneOverFullRange(t *testing.T) {
	prev := lg.DynamicPrice(1_000, 100, 100, 5_000)
	for remaining := uint64(100); remaining > 0; remaining-- {
		price := lg.DynamicPrice(1_000, 100, remaining-1, 5_000)
		assert.GreaterOrEqual(t, price, prev, "remaining=%d", remaining-1)
		prev = price
	}
}

func TestDynamicPricingPassthroughWithoutQuotaOrBase(t *testing.T) {
	assert.Equal(t, uint64(1_000), lg.DynamicPrice(1_000, 0, 0, 5_000))
	assert.Equal(t, uint64(0), lg.DynamicPrice(0, 100, 10, 5_000))
}

func TestDynamicPricingClampsExcessRemaining(t *testing.T) {
	// Remaining above the limit counts as zero utilization.
	assert.Equal(t, uint64(1_000), lg.DynamicPrice(1_000, 100, 500, 5_000))
}

func TestDynamicPricingHonorsSurgeAboveFullRange(t *testing.T) {
	// max_surge_bps above 10000 is accepted as configured: at full
	// utilization minus one the surge exceeds 100%.
	price := lg.DynamicPrice(1_000, 100, 0, 20_000)
	assert.Greater(t, price, uint64(2_000))
}

func TestCanChargeChecksPostFloorBalance(t *testing.T) {
	assert.True(t, lg.CanCharge(2_000_000, 1_000_000, 500_000))
	assert.False(t, lg.CanCharge(1_400_000, 1_000_000, 500_000))
}

func TestCanChargeTreatsOverflowAsFailure(t *testing.T) {
	assert.False(t, lg.CanCharge(math.MaxUint64, math.MaxUint64, 1))
}
