package ledgergate

import "encoding/binary"

// Record sizes in bytes. Records are fixed-size and versionless; a stored
// record of any other length is rejected as invalid.
const (
	GatewayConfigLen   = 1 + 32 + 32 + 32 + 8 + 2 + 8 + 8 + 8 + 8 + 1
	ConsumerAccountLen = 1 + 32 + 32 + 8 + 32 + 8 + 8 + 8 + 8 + 8 + 8 + 1
)

// GatewayConfig is the per-administrator rule record. Written once by
// InitializeGateway and immutable thereafter.
type GatewayConfig struct {
	Initialized   bool
	Admin         Address
	Treasury      Address
	BackendSigner Address
	Rules         Rules
	Nonce         uint8 // address-derivation nonce
}

// Marshal packs the record into its fixed little-endian layout.
func (g *GatewayConfig) Marshal() []byte {
	buf := make([]byte, 0, GatewayConfigLen)
	buf = appendBool(buf, g.Initialized)
	buf = append(buf, g.Admin[:]...)
	buf = append(buf, g.Treasury[:]...)
	buf = append(buf, g.BackendSigner[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, g.Rules.BasePrice)
	buf = binary.LittleEndian.AppendUint16(buf, g.Rules.MaxSurgeBps)
	buf = binary.LittleEndian.AppendUint64(buf, g.Rules.PeriodLimit)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(g.Rules.PeriodSeconds))
	buf = binary.LittleEndian.AppendUint64(buf, g.Rules.BucketCapacity)
	buf = binary.LittleEndian.AppendUint64(buf, g.Rules.RefillPerSecond)
	buf = append(buf, g.Nonce)
	return buf
}

// UnmarshalGatewayConfig decodes a gateway record, rejecting any input whose
// size does not match the fixed layout.
func UnmarshalGatewayConfig(data []byte) (GatewayConfig, error) {
	if len(data) != GatewayConfigLen {
		return GatewayConfig{}, ErrInvalidAccount
	}

	r := recordReader{buf: data}
	var g GatewayConfig
	g.Initialized = r.bool()
	g.Admin = r.address()
	g.Treasury = r.address()
	g.BackendSigner = r.address()
	g.Rules.BasePrice = r.u64()
	g.Rules.MaxSurgeBps = r.u16()
	g.Rules.PeriodLimit = r.u64()
	g.Rules.PeriodSeconds = r.i64()
	g.Rules.BucketCapacity = r.u64()
	g.Rules.RefillPerSecond = r.u64()
	g.Nonce = r.u8()
	return g, nil
}

// ConsumerAccount is the per-consumer record: identity, stored credential
// digest and runtime counters. Mutated only by a successful Consume.
type ConsumerAccount struct {
	Initialized bool
	Gateway     Address
	Owner       Address
	APIKeyID    uint64
	APIKeyHash  [32]byte
	Runtime     Runtime
	Nonce       uint8 // address-derivation nonce
}

// Marshal packs the record into its fixed little-endian layout.
func (c *ConsumerAccount) Marshal() []byte {
	buf := make([]byte, 0, ConsumerAccountLen)
	buf = appendBool(buf, c.Initialized)
	buf = append(buf, c.Gateway[:]...)
	buf = append(buf, c.Owner[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, c.APIKeyID)
	buf = append(buf, c.APIKeyHash[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, c.Runtime.BucketTokens)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(c.Runtime.BucketLastRefillTS))
	buf = binary.LittleEndian.AppendUint64(buf, c.Runtime.QuotaRemaining)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(c.Runtime.QuotaPeriodStartTS))
	buf = binary.LittleEndian.AppendUint64(buf, c.Runtime.TotalCalls)
	buf = binary.LittleEndian.AppendUint64(buf, c.Runtime.TotalSpent)
	buf = append(buf, c.Nonce)
	return buf
}

// UnmarshalConsumerAccount decodes a consumer record, rejecting any input
// whose size does not match the fixed layout.
func UnmarshalConsumerAccount(data []byte) (ConsumerAccount, error) {
	if len(data) != ConsumerAccountLen {
		return ConsumerAccount{}, ErrInvalidAccount
	}

	r := recordReader{buf: data}
	var c ConsumerAccount
	c.Initialized = r.bool()
	c.Gateway = r.address()
	c.Owner = r.address()
	c.APIKeyID = r.u64()
	c.APIKeyHash = r.hash()
	c.Runtime.BucketTokens = r.u64()
	c.Runtime.BucketLastRefillTS = r.i64()
	c.Runtime.QuotaRemaining = r.u64()
	c.Runtime.QuotaPeriodStartTS = r.i64()
	c.Runtime.TotalCalls = r.u64()
	c.Runtime.TotalSpent = r.u64()
	c.Nonce = r.u8()
	return c, nil
}

func appendBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

// recordReader walks a fixed-size record buffer. Callers check the total
// length up front, so reads never run past the end.
type recordReader struct {
	buf []byte
	off int
}

func (r *recordReader) bool() bool {
	v := r.buf[r.off]
	r.off++
	return v != 0
}

func (r *recordReader) u8() uint8 {
	v := r.buf[r.off]
	r.off++
	return v
}

func (r *recordReader) u16() uint16 {
	v := binary.LittleEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v
}

func (r *recordReader) u64() uint64 {
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v
}

func (r *recordReader) i64() int64 {
	return int64(r.u64())
}

func (r *recordReader) address() Address {
	var a Address
	copy(a[:], r.buf[r.off:])
	r.off += len(a)
	return a
}

func (r *recordReader) hash() [32]byte {
	var h [32]byte
	copy(h[:], r.buf[r.off:])
	r.off += len(h)
	return h
}
