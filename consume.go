package ledgergate

// Rules are the immutable charging parameters of a gateway, fixed at
// initialization.
type Rules struct {
	BasePrice       uint64
	MaxSurgeBps     uint16 // values above 10_000 are honored as configured
	PeriodLimit     uint64 // calls per window; 0 disables the quota
	PeriodSeconds   int64  // window length; <=0 disables rolling
	BucketCapacity  uint64 // 0 disables rate limiting
	RefillPerSecond uint64
}

// Runtime is the mutable per-consumer counter set. TotalCalls and TotalSpent
// only ever increase, and only together.
type Runtime struct {
	BucketTokens       uint64
	BucketLastRefillTS int64
	QuotaRemaining     uint64
	QuotaPeriodStartTS int64
	TotalCalls         uint64
	TotalSpent         uint64
}

// CanCharge reports whether available covers the retention floor plus the
// charge. An overflowing floor+charge sum fails the check.
func CanCharge(available, floor, charge uint64) bool {
	required, ok := checkedAdd64(floor, charge)
	return ok && available >= required
}

// ApplyConsume decides whether one API call may be charged and at what price.
//
// It composes the bucket refill, the quota roll and the dynamic price against
// a staged copy of state, writing the copy back only after every check has
// passed. On any rejection state is untouched: a refused call is
// indistinguishable from one that never happened.
func ApplyConsume(rules Rules, state *Runtime, now int64, available, floor uint64) (uint64, error) {
	next := *state

	if rules.BucketCapacity > 0 {
		bucket := Bucket{
			Capacity:        rules.BucketCapacity,
			Tokens:          next.BucketTokens,
			RefillPerSecond: rules.RefillPerSecond,
			LastRefillTS:    next.BucketLastRefillTS,
		}
		bucket.Refill(now)

		if bucket.Tokens == 0 {
			return 0, ErrRateLimited
		}

		bucket.Tokens--
		next.BucketTokens = bucket.Tokens
		next.BucketLastRefillTS = bucket.LastRefillTS
	}

	// Price reflects utilization after this call is counted.
	remainingForPrice := next.QuotaRemaining

	if rules.PeriodLimit > 0 {
		window := QuotaWindow{
			PeriodSeconds: rules.PeriodSeconds,
			PeriodStartTS: next.QuotaPeriodStartTS,
			PeriodLimit:   rules.PeriodLimit,
			Remaining:     next.QuotaRemaining,
		}
		window.Roll(now)

		if window.Remaining == 0 {
			return 0, ErrQuotaExceeded
		}

		window.Remaining--
		remainingForPrice = window.Remaining
		next.QuotaRemaining = window.Remaining
		next.QuotaPeriodStartTS = window.PeriodStartTS
	}

	price := DynamicPrice(rules.BasePrice, rules.PeriodLimit, remainingForPrice, rules.MaxSurgeBps)

	if !CanCharge(available, floor, price) {
		return 0, ErrInsufficientBalance
	}

	next.TotalCalls = satAdd64(next.TotalCalls, 1)
	next.TotalSpent = satAdd64(next.TotalSpent, price)
	*state = next

	return price, nil
}
