package ledgergate

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// Address identifies a record or signer on the host ledger.
type Address [32]byte

// ZeroAddress is the all-zero address. It doubles as the system owner of
// accounts not yet claimed by any namespace.
var ZeroAddress Address

const addressHRP = "gate"

// IsZero reports whether the address is all zeroes.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// String renders the address as bech32 with the "gate" prefix.
func (a Address) String() string {
	bits5, err := convertBits(a[:], 8, 5, true)
	if err != nil {
		// 8->5 widening with padding cannot fail for byte input.
		return hex.EncodeToString(a[:])
	}
	s, err := bech32Encode(addressHRP, bits5)
	if err != nil {
		return hex.EncodeToString(a[:])
	}
	return s
}

// MarshalText implements encoding.TextMarshaler using the bech32 form.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddress decodes a bech32 "gate1..." address string.
func ParseAddress(s string) (Address, error) {
	hrp, data, err := bech32Decode(s)
	if err != nil {
		return ZeroAddress, err
	}
	if hrp != addressHRP {
		return ZeroAddress, fmt.Errorf("ledgergate: address: wrong prefix %q", hrp)
	}

	raw, err := convertBits(data, 5, 8, false)
	if err != nil {
		return ZeroAddress, err
	}
	if len(raw) != len(Address{}) {
		return ZeroAddress, fmt.Errorf("ledgergate: address: want %d bytes, got %d", len(Address{}), len(raw))
	}

	var addr Address
	copy(addr[:], raw)
	return addr, nil
}

// HashAPIKey digests an API key for on-ledger storage and presentation
// checks. Only the digest ever leaves the client.
func HashAPIKey(key string) [32]byte {
	return sha256.Sum256([]byte(key))
}

const (
	deriveDomain = "ledgergate:derive:v1"
	gatewayTag   = "gateway"
	consumerTag  = "consumer"
)

// MaxNonce is the first candidate tried during address derivation.
const MaxNonce = 255

// DeriveGatewayAddress computes the canonical gateway record address for an
// admin within a namespace, along with the derivation nonce.
func DeriveGatewayAddress(namespace, admin Address) (Address, uint8) {
	return deriveAddress(namespace, gatewayTag, admin[:])
}

// DeriveConsumerAddress computes the canonical consumer record address for a
// (gateway, owner, api key id) triple within a namespace.
func DeriveConsumerAddress(namespace, gateway, owner Address, apiKeyID uint64) (Address, uint8) {
	var id [8]byte
	binary.LittleEndian.PutUint64(id[:], apiKeyID)
	return deriveAddress(namespace, consumerTag, gateway[:], owner[:], id[:])
}

// deriveAddress hashes tag, seeds, a nonce and the namespace under a fixed
// domain separator. Addresses with a zero leading byte are reserved by the
// host for system accounts, so derivation steps the nonce down past them.
// Callers store the chosen nonce so the address stays recomputable.
func deriveAddress(namespace Address, tag string, seeds ...[]byte) (Address, uint8) {
	for nonce := MaxNonce; nonce >= 0; nonce-- {
		h := sha256.New()
		h.Write([]byte(deriveDomain))
		h.Write([]byte(tag))
		for _, seed := range seeds {
			h.Write(seed)
		}
		h.Write([]byte{uint8(nonce)})
		h.Write(namespace[:])

		var addr Address
		h.Sum(addr[:0])
		if addr[0] != 0 {
			return addr, uint8(nonce)
		}
	}

	// 256 consecutive reserved candidates; not reachable with a
	// collision-resistant digest.
	return ZeroAddress, 0
}

const bech32Charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

// bech32Encode encodes data (5-bit groups) with the given human-readable part.
func bech32Encode(hrp string, data []byte) (string, error) {
	checksum := bech32Checksum(hrp, data)
	combined := append(append([]byte{}, data...), checksum...)

	result := make([]byte, 0, len(hrp)+1+len(combined))
	result = append(result, []byte(hrp)...)
	result = append(result, '1')
	for _, v := range combined {
		if int(v) >= len(bech32Charset) {
			return "", fmt.Errorf("ledgergate: bech32: invalid data byte %d", v)
		}
		result = append(result, bech32Charset[v])
	}
	return string(result), nil
}

// bech32Decode splits and checksum-verifies a bech32 string, returning the
// human-readable part and the 5-bit data groups.
func bech32Decode(s string) (string, []byte, error) {
	if strings.ToLower(s) != s {
		return "", nil, fmt.Errorf("ledgergate: bech32: mixed case in %q", s)
	}

	sep := strings.LastIndexByte(s, '1')
	if sep < 1 || sep+7 > len(s) {
		return "", nil, fmt.Errorf("ledgergate: bech32: malformed %q", s)
	}

	hrp := s[:sep]
	data := make([]byte, 0, len(s)-sep-1)
	for _, c := range s[sep+1:] {
		idx := strings.IndexRune(bech32Charset, c)
		if idx < 0 {
			return "", nil, fmt.Errorf("ledgergate: bech32: invalid character %q", c)
		}
		data = append(data, byte(idx))
	}

	values := append(bech32HRPExpand(hrp), data...)
	if bech32Polymod(values) != 1 {
		return "", nil, fmt.Errorf("ledgergate: bech32: checksum mismatch in %q", s)
	}

	return hrp, data[:len(data)-6], nil
}

func bech32HRPExpand(hrp string) []byte {
	expand := make([]byte, 0, len(hrp)*2+1)
	for _, c := range hrp {
		expand = append(expand, byte(c>>5))
	}
	expand = append(expand, 0)
	for _, c := range hrp {
		expand = append(expand, byte(c&31))
	}
	return expand
}

func bech32Polymod(values []byte) uint32 {
	gen := [5]uint32{0x3b6a57b2, 0x26508e6d, 0x1ea119fa, 0x3d4233dd, 0x2a1462b3}
	chk := uint32(1)
	for _, v := range values {
		b := chk >> 25
		chk = (chk&0x1ffffff)<<5 ^ uint32(v)
		for i := 0; i < 5; i++ {
			if (b>>uint(i))&1 == 1 {
				chk ^= gen[i]
			}
		}
	}
	return chk
}

func bech32Checksum(hrp string, data []byte) []byte {
	values := append(bech32HRPExpand(hrp), data...)
	values = append(values, 0, 0, 0, 0, 0, 0)
	polymod := bech32Polymod(values) ^ 1
	checksum := make([]byte, 6)
	for i := 0; i < 6; i++ {
		checksum[i] = byte((polymod >> uint(5*(5-i))) & 31)
	}
	return checksum
}

// convertBits converts data between bit widths.
func convertBits(data []byte, fromBits, toBits uint, pad bool) ([]byte, error) {
	acc := uint32(0)
	bits := uint(0)
	maxv := uint32((1 << toBits) - 1)
	var result []byte

	for _, b := range data {
		if uint32(b)>>fromBits != 0 {
			return nil, fmt.Errorf("ledgergate: bech32: invalid data byte %d", b)
		}
		acc = (acc << fromBits) | uint32(b)
		bits += fromBits
		for bits >= toBits {
			bits -= toBits
			result = append(result, byte((acc>>bits)&maxv))
		}
	}

	if pad {
		if bits > 0 {
			result = append(result, byte((acc<<(toBits-bits))&maxv))
		}
	} else if bits >= fromBits {
		return nil, fmt.Errorf("ledgergate: bech32: excess padding")
	} else if (acc<<(toBits-bits))&maxv != 0 {
		return nil, fmt.Errorf("ledgergate: bech32: non-zero padding")
	}

	return result, nil
}
