// Package keys manages secp256k1 signing identities for the gateway.
//
// A signer's on-ledger identity is the SHA256 of its compressed public key.
// Signatures are 65-byte compact recoverable ECDSA, verified by recovering
// the public key and re-deriving the identity.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/ineyio/ledgergate"
)

// Keypair is a secp256k1 signing identity.
type Keypair struct {
	priv *secp256k1.PrivateKey
	addr ledgergate.Address
}

// Generate creates a new random keypair.
func Generate() (*Keypair, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("keys: generate: %w", err)
	}
	return fromPrivate(priv), nil
}

// FromHex parses a hex-encoded 32-byte private key.
func FromHex(hexKey string) (*Keypair, error) {
	hexKey = strings.TrimPrefix(hexKey, "0x")
	hexKey = strings.TrimPrefix(hexKey, "0X")

	keyBytes, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("keys: invalid private key hex: %w", err)
	}
	if len(keyBytes) != 32 {
		return nil, fmt.Errorf("keys: private key must be 32 bytes, got %d", len(keyBytes))
	}

	priv := secp256k1.PrivKeyFromBytes(keyBytes)
	if priv.Key.IsZero() {
		return nil, fmt.Errorf("keys: private key is zero")
	}

	return fromPrivate(priv), nil
}

// Load reads a key file written by Save.
func Load(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keys: read key file: %w", err)
	}
	return FromHex(string(data))
}

// Save writes the hex private key to path, readable only by the owner.
func (k *Keypair) Save(path string) error {
	content := hex.EncodeToString(k.priv.Serialize()) + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("keys: write key file: %w", err)
	}
	return nil
}

// Address returns the signer's on-ledger identity.
func (k *Keypair) Address() ledgergate.Address {
	return k.addr
}

// Sign produces a compact recoverable signature over sha256(message).
func (k *Keypair) Sign(message []byte) []byte {
	digest := sha256.Sum256(message)
	return ecdsa.SignCompact(k.priv, digest[:], true)
}

// SignTx signs the transaction's canonical message and appends the entry.
func (k *Keypair) SignTx(tx *ledgergate.Transaction) {
	tx.Signatures = append(tx.Signatures, ledgergate.SignatureEntry{
		Signer:    k.addr,
		Signature: k.Sign(tx.SigningMessage()),
	})
}

func fromPrivate(priv *secp256k1.PrivateKey) *Keypair {
	return &Keypair{priv: priv, addr: addressFromPub(priv.PubKey())}
}

func addressFromPub(pub *secp256k1.PublicKey) ledgergate.Address {
	return ledgergate.Address(sha256.Sum256(pub.SerializeCompressed()))
}

// Verifier validates compact signatures by public-key recovery.
type Verifier struct{}

var _ ledgergate.Verifier = Verifier{}

// Verify reports whether sig is a valid signature over message by the key
// behind the signer identity.
func (Verifier) Verify(signer ledgergate.Address, message, sig []byte) bool {
	if len(sig) != 65 {
		return false
	}
	digest := sha256.Sum256(message)
	pub, _, err := ecdsa.RecoverCompact(sig, digest[:])
	if err != nil {
		return false
	}
	return addressFromPub(pub) == signer
}
