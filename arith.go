package ledgergate

import "math"

// satAdd64 returns a+b, clamping at MaxUint64.
func satAdd64(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

// satMul64 returns a*b, clamping at MaxUint64.
func satMul64(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxUint64/b {
		return math.MaxUint64
	}
	return a * b
}

// checkedAdd64 returns a+b and false if the sum would overflow.
func checkedAdd64(a, b uint64) (uint64, bool) {
	if a > math.MaxUint64-b {
		return 0, false
	}
	return a + b, true
}
