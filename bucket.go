package ledgergate

// Bucket is a lazily refilled token bucket. One token is consumed per
// allowed call; refill happens arithmetically on access, never in the
// background, so identical inputs produce identical buckets on every replica.
type Bucket struct {
	Capacity        uint64
	Tokens          uint64
	RefillPerSecond uint64
	LastRefillTS    int64
}

// Refill advances the bucket to now, adding elapsed seconds times the refill
// rate and capping at capacity. A non-increasing timestamp is a no-op, which
// guards against a stalled host clock and replayed timestamps.
func (b *Bucket) Refill(now int64) {
	if now <= b.LastRefillTS {
		return
	}

	elapsed := uint64(now - b.LastRefillTS)
	b.Tokens = min(b.Capacity, satAdd64(b.Tokens, satMul64(elapsed, b.RefillPerSecond)))
	b.LastRefillTS = now
}
