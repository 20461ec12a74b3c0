package ledgergate

import "encoding/binary"

// AccountMeta declares one account a transaction touches and how.
type AccountMeta struct {
	Address  Address
	Signer   bool
	Writable bool
}

// SignatureEntry carries one signer's compact signature over the
// transaction's signing message.
type SignatureEntry struct {
	Signer    Address
	Signature []byte
}

// Transaction is one submitted transition: the namespace it targets, the
// ordered accounts it touches, the encoded instruction payload and the
// signatures authorizing it.
type Transaction struct {
	Program    Address
	Accounts   []AccountMeta
	Payload    []byte
	Signatures []SignatureEntry
}

// SigningMessage returns the canonical bytes each signer commits to:
// program, account list with flags, then the length-prefixed payload.
func (t *Transaction) SigningMessage() []byte {
	buf := make([]byte, 0, 32+2+len(t.Accounts)*34+4+len(t.Payload))
	buf = append(buf, t.Program[:]...)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(t.Accounts)))
	for _, m := range t.Accounts {
		buf = append(buf, m.Address[:]...)
		buf = appendBool(buf, m.Signer)
		buf = appendBool(buf, m.Writable)
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(t.Payload)))
	buf = append(buf, t.Payload...)
	return buf
}

// AccountView is one loaded account as seen by a transition. The processor
// mutates views freely; the host persists them only when the whole transition
// succeeds, which is what makes every operation all-or-nothing.
type AccountView struct {
	Address  Address
	Owner    Address // claiming namespace; ZeroAddress while unclaimed
	Balance  uint64
	Data     []byte
	Exists   bool
	Signer   bool
	Writable bool
}
