package ledgergate

// DynamicPrice computes the surge-adjusted charge for one call.
//
// The surge scales linearly with quota utilization: at zero utilization the
// result is exactly basePrice, and at full utilization it approaches
// basePrice * (10000 + maxSurgeBps) / 10000. With the quota disabled
// (periodLimit == 0) there is no utilization to measure, so basePrice is
// returned unchanged. All intermediate products saturate rather than wrap.
func DynamicPrice(basePrice, periodLimit, remaining uint64, maxSurgeBps uint16) uint64 {
	if periodLimit == 0 || basePrice == 0 {
		return basePrice
	}

	capped := min(remaining, periodLimit)
	used := periodLimit - capped
	utilizationBps := satMul64(used, 10_000) / periodLimit
	surgeBps := satMul64(utilizationBps, uint64(maxSurgeBps)) / 10_000

	return satMul64(basePrice, 10_000+surgeBps) / 10_000
}
