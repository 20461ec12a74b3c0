package ledgergate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Clock supplies transition timestamps. Implementations must be
// monotonic-or-stalled: returned values never decrease.
type Clock interface {
	Now() int64
}

// SystemClock reads the wall clock in whole seconds.
type SystemClock struct{}

func (SystemClock) Now() int64 { return time.Now().Unix() }

// Verifier checks a signature over a signing message against a signer
// identity.
type Verifier interface {
	Verify(signer Address, message, signature []byte) bool
}

// DefaultFloor is the host's retention floor: a flat per-account charge plus
// a per-byte component, in base units.
func DefaultFloor(dataLen int) uint64 {
	return 890_880 + 6_960*uint64(dataLen)
}

// Receipt reports the outcome of an executed transaction.
type Receipt struct {
	ID     string
	Op     string
	Charge uint64
}

// Node hosts a gateway namespace over an AccountStore and executes signed
// transactions against it, one at a time. It stands in for the ledger
// runtime: it authenticates signers, locks the touched record set, runs the
// processor over loaded views and commits the written views in a single
// batch, or nothing at all.
type Node struct {
	store     AccountStore
	processor *Processor
	clock     Clock
	verifier  Verifier
	meter     Meter
	floor     FloorFunc

	mu sync.Mutex
}

// NodeOption configures a Node.
type NodeOption func(*Node)

// WithClock sets the clock used to stamp transitions.
func WithClock(c Clock) NodeOption {
	return func(n *Node) { n.clock = c }
}

// WithVerifier enables cryptographic signature verification. Without one the
// node only checks that every required signer carries a signature entry,
// which is the trusted in-process mode used by tests and examples.
func WithVerifier(v Verifier) NodeOption {
	return func(n *Node) { n.verifier = v }
}

// WithMeter sets the transition meter.
func WithMeter(m Meter) NodeOption {
	return func(n *Node) { n.meter = m }
}

// WithFloor overrides the retention floor function.
func WithFloor(f FloorFunc) NodeOption {
	return func(n *Node) { n.floor = f }
}

// NewNode creates a node for the given namespace over the given store.
func NewNode(store AccountStore, namespace Address, opts ...NodeOption) *Node {
	n := &Node{
		store:     store,
		processor: NewProcessor(namespace),
		clock:     SystemClock{},
		floor:     DefaultFloor,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.meter == nil {
		n.meter = noopMeter{}
	}
	return n
}

// Namespace returns the namespace address this node hosts.
func (n *Node) Namespace() Address {
	return n.processor.Namespace
}

// Execute authenticates and applies one transaction. A returned rejection
// guarantees that no account was written.
func (n *Node) Execute(ctx context.Context, tx Transaction) (Receipt, error) {
	start := time.Now()
	receipt := Receipt{ID: uuid.New().String()}

	ins, err := DecodeInstruction(tx.Payload)
	if err != nil {
		return receipt, n.reject(receipt, "", start, err)
	}
	receipt.Op = ins.Op()

	if err := n.authenticate(tx); err != nil {
		return receipt, n.reject(receipt, ins.Op(), start, err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	views := make([]*AccountView, len(tx.Accounts))
	for i, m := range tx.Accounts {
		stored, ok, err := n.store.Get(ctx, m.Address)
		if err != nil {
			return receipt, fmt.Errorf("ledgergate: load %s: %w", m.Address, err)
		}
		v := &AccountView{Address: m.Address, Signer: m.Signer, Writable: m.Writable}
		if ok {
			v.Exists = true
			v.Owner = stored.Owner
			v.Balance = stored.Balance
			v.Data = append([]byte(nil), stored.Data...)
		}
		views[i] = v
	}

	charge, err := n.processor.Apply(views, ins, n.clock.Now(), n.floor)
	if err != nil {
		return receipt, n.reject(receipt, ins.Op(), start, err)
	}

	writes := make([]StoredAccount, 0, len(views))
	for _, v := range views {
		if !v.Writable {
			continue
		}
		writes = append(writes, StoredAccount{
			Address: v.Address,
			Owner:   v.Owner,
			Balance: v.Balance,
			Data:    v.Data,
		})
	}
	if err := n.store.PutAll(ctx, writes); err != nil {
		return receipt, fmt.Errorf("ledgergate: commit: %w", err)
	}

	receipt.Charge = charge
	n.meter.OnTransition(TransitionEvent{
		ID:       receipt.ID,
		Op:       ins.Op(),
		Charge:   charge,
		Success:  true,
		Duration: time.Since(start),
	})
	return receipt, nil
}

// authenticate checks the account list and signatures before any state read.
func (n *Node) authenticate(tx Transaction) error {
	if tx.Program != n.processor.Namespace {
		return ErrInvalidAccount
	}

	seen := make(map[Address]bool, len(tx.Accounts))
	for _, m := range tx.Accounts {
		if seen[m.Address] {
			return ErrInvalidAccount
		}
		seen[m.Address] = true
	}

	message := tx.SigningMessage()
	for _, m := range tx.Accounts {
		if !m.Signer {
			continue
		}
		entry, ok := findSignature(tx.Signatures, m.Address)
		if !ok {
			return ErrUnauthorized
		}
		if n.verifier != nil && !n.verifier.Verify(m.Address, message, entry.Signature) {
			return ErrUnauthorized
		}
	}
	return nil
}

func (n *Node) reject(receipt Receipt, op string, start time.Time, err error) error {
	if op != "" {
		err = &TransitionError{Op: op, Err: err}
	}
	n.meter.OnTransition(TransitionEvent{
		ID:       receipt.ID,
		Op:       op,
		Success:  false,
		Duration: time.Since(start),
		Err:      err,
	})
	return err
}

func findSignature(entries []SignatureEntry, signer Address) (SignatureEntry, bool) {
	for _, e := range entries {
		if e.Signer == signer {
			return e, true
		}
	}
	return SignatureEntry{}, false
}

// GetAccount loads one account from the backing store.
func (n *Node) GetAccount(ctx context.Context, addr Address) (StoredAccount, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.store.Get(ctx, addr)
}

// Fund credits an address directly in the store, bypassing transition checks.
// Local-cluster and test affordance; a production host funds accounts through
// its native transfer path.
func (n *Node) Fund(ctx context.Context, addr Address, amount uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	stored, ok, err := n.store.Get(ctx, addr)
	if err != nil {
		return err
	}
	if !ok {
		stored = StoredAccount{Address: addr}
	}
	stored.Balance = satAdd64(stored.Balance, amount)
	return n.store.PutAll(ctx, []StoredAccount{stored})
}

// noopMeter is the default meter; it discards every event.
type noopMeter struct{}

func (noopMeter) OnTransition(TransitionEvent) {}
