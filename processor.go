package ledgergate

import (
	"crypto/subtle"
	"encoding/binary"
)

// FloorFunc returns the retention floor for a record of the given size: the
// minimum balance the account must keep to stay valid on the host ledger.
type FloorFunc func(dataLen int) uint64

// Processor applies gateway transitions to ordered account views. It holds no
// state beyond the namespace address, so one processor serves any number of
// concurrent record sets as long as the host locks each set exclusively.
type Processor struct {
	Namespace Address
}

// NewProcessor creates a processor for the given namespace.
func NewProcessor(namespace Address) *Processor {
	return &Processor{Namespace: namespace}
}

// Process decodes payload and applies it. See Apply.
func (p *Processor) Process(views []*AccountView, payload []byte, now int64, floor FloorFunc) (uint64, error) {
	ins, err := DecodeInstruction(payload)
	if err != nil {
		return 0, err
	}
	return p.Apply(views, ins, now, floor)
}

// Apply runs one decoded transition against the account views, returning the
// charge collected (nonzero only for Consume). On error the views may hold
// partial mutations; the caller must discard them and persist nothing.
func (p *Processor) Apply(views []*AccountView, ins Instruction, now int64, floor FloorFunc) (uint64, error) {
	switch ins := ins.(type) {
	case InitializeGateway:
		return 0, p.initializeGateway(views, ins, floor)
	case RegisterConsumer:
		return 0, p.registerConsumer(views, ins, now, floor)
	case TopUp:
		return 0, p.topUp(views, ins)
	case Consume:
		return p.consume(views, ins, now, floor)
	}
	return 0, ErrInvalidInstruction
}

// Accounts: admin (signer, writable), gateway (writable), treasury, backend.
func (p *Processor) initializeGateway(views []*AccountView, ins InitializeGateway, floor FloorFunc) error {
	if len(views) != 4 {
		return ErrInvalidAccount
	}
	admin, gateway, treasury, backend := views[0], views[1], views[2], views[3]

	if err := requireSigner(admin); err != nil {
		return err
	}
	if err := requireWritable(gateway); err != nil {
		return err
	}

	expected, nonce := DeriveGatewayAddress(p.Namespace, admin.Address)
	if expected != gateway.Address {
		return ErrInvalidAccount
	}

	if err := claimRecordAccount(admin, gateway, p.Namespace, GatewayConfigLen, floor); err != nil {
		return err
	}

	existing, err := UnmarshalGatewayConfig(gateway.Data)
	if err != nil {
		return err
	}
	if existing.Initialized {
		return ErrAlreadyInitialized
	}

	cfg := GatewayConfig{
		Initialized:   true,
		Admin:         admin.Address,
		Treasury:      treasury.Address,
		BackendSigner: backend.Address,
		Rules: Rules{
			BasePrice:       ins.BasePrice,
			MaxSurgeBps:     ins.MaxSurgeBps,
			PeriodLimit:     ins.PeriodLimit,
			PeriodSeconds:   ins.PeriodSeconds,
			BucketCapacity:  ins.BucketCapacity,
			RefillPerSecond: ins.RefillPerSecond,
		},
		Nonce: nonce,
	}
	gateway.Data = cfg.Marshal()
	return nil
}

// Accounts: owner (signer, writable), gateway, consumer (writable).
func (p *Processor) registerConsumer(views []*AccountView, ins RegisterConsumer, now int64, floor FloorFunc) error {
	if len(views) != 3 {
		return ErrInvalidAccount
	}
	owner, gateway, consumer := views[0], views[1], views[2]

	if err := requireSigner(owner); err != nil {
		return err
	}
	if err := requireWritable(consumer); err != nil {
		return err
	}

	if gateway.Owner != p.Namespace {
		return ErrInvalidAccount
	}
	gw, err := UnmarshalGatewayConfig(gateway.Data)
	if err != nil {
		return err
	}
	if !gw.Initialized {
		return ErrInvalidAccount
	}

	expected, nonce := DeriveConsumerAddress(p.Namespace, gateway.Address, owner.Address, ins.APIKeyID)
	if expected != consumer.Address {
		return ErrInvalidAccount
	}

	if err := claimRecordAccount(owner, consumer, p.Namespace, ConsumerAccountLen, floor); err != nil {
		return err
	}

	existing, err := UnmarshalConsumerAccount(consumer.Data)
	if err != nil {
		return err
	}
	if existing.Initialized {
		return ErrAlreadyInitialized
	}

	// New consumers start with a full bucket and a full quota window
	// stamped at host time.
	acct := ConsumerAccount{
		Initialized: true,
		Gateway:     gateway.Address,
		Owner:       owner.Address,
		APIKeyID:    ins.APIKeyID,
		APIKeyHash:  ins.APIKeyHash,
		Runtime: Runtime{
			BucketTokens:       gw.Rules.BucketCapacity,
			BucketLastRefillTS: now,
			QuotaRemaining:     gw.Rules.PeriodLimit,
			QuotaPeriodStartTS: now,
		},
		Nonce: nonce,
	}
	consumer.Data = acct.Marshal()
	return nil
}

// Accounts: owner (signer, writable), consumer (writable).
func (p *Processor) topUp(views []*AccountView, ins TopUp) error {
	if len(views) != 2 {
		return ErrInvalidAccount
	}
	owner, consumer := views[0], views[1]

	if err := requireSigner(owner); err != nil {
		return err
	}
	if err := requireWritable(owner); err != nil {
		return err
	}
	if err := requireWritable(consumer); err != nil {
		return err
	}

	if !consumer.Exists || consumer.Owner != p.Namespace {
		return ErrInvalidAccount
	}
	acct, err := UnmarshalConsumerAccount(consumer.Data)
	if err != nil {
		return err
	}
	if !acct.Initialized {
		return ErrInvalidAccount
	}
	if acct.Owner != owner.Address {
		return ErrUnauthorized
	}

	if owner.Balance < ins.Amount {
		return ErrInsufficientBalance
	}
	credited, ok := checkedAdd64(consumer.Balance, ins.Amount)
	if !ok {
		return ErrInvalidAccount
	}
	owner.Balance -= ins.Amount
	consumer.Balance = credited
	return nil
}

// Accounts: backend (signer), gateway, consumer (writable), treasury (writable).
func (p *Processor) consume(views []*AccountView, ins Consume, now int64, floor FloorFunc) (uint64, error) {
	if len(views) != 4 {
		return 0, ErrInvalidAccount
	}
	backend, gateway, consumer, treasury := views[0], views[1], views[2], views[3]

	if err := requireSigner(backend); err != nil {
		return 0, err
	}
	if err := requireWritable(consumer); err != nil {
		return 0, err
	}
	if err := requireWritable(treasury); err != nil {
		return 0, err
	}

	if gateway.Owner != p.Namespace {
		return 0, ErrInvalidAccount
	}
	gw, err := UnmarshalGatewayConfig(gateway.Data)
	if err != nil {
		return 0, err
	}
	if !gw.Initialized {
		return 0, ErrInvalidAccount
	}
	if gw.BackendSigner != backend.Address {
		return 0, ErrUnauthorized
	}
	if gw.Treasury != treasury.Address {
		return 0, ErrInvalidAccount
	}

	if consumer.Owner != p.Namespace {
		return 0, ErrInvalidAccount
	}
	acct, err := UnmarshalConsumerAccount(consumer.Data)
	if err != nil {
		return 0, err
	}
	if !acct.Initialized {
		return 0, ErrInvalidAccount
	}
	if acct.Gateway != gateway.Address {
		return 0, ErrInvalidAccount
	}

	// Key id and digest are compared together in constant value so a
	// mismatch does not reveal which part differed.
	var want, got [40]byte
	binary.LittleEndian.PutUint64(want[:8], acct.APIKeyID)
	copy(want[8:], acct.APIKeyHash[:])
	binary.LittleEndian.PutUint64(got[:8], ins.APIKeyID)
	copy(got[8:], ins.PresentedHash[:])
	if subtle.ConstantTimeCompare(want[:], got[:]) != 1 {
		return 0, ErrAPIKeyMismatch
	}

	runtime := acct.Runtime
	charge, err := ApplyConsume(gw.Rules, &runtime, now, consumer.Balance, floor(ConsumerAccountLen))
	if err != nil {
		return 0, err
	}

	if consumer.Balance < charge {
		return 0, ErrInsufficientBalance
	}
	credited, ok := checkedAdd64(treasury.Balance, charge)
	if !ok {
		return 0, ErrInvalidAccount
	}

	// The debit, the credit and the counter update land in the same view
	// commit; none of them is visible without the others.
	consumer.Balance -= charge
	treasury.Balance = credited
	acct.Runtime = runtime
	consumer.Data = acct.Marshal()

	return charge, nil
}

// claimRecordAccount claims a fresh record account for the namespace, funding
// its retention floor from payer. An account already claimed with the right
// size is accepted as-is, so replaying a half-confirmed creation is harmless;
// anything else sitting at the address is rejected.
func claimRecordAccount(payer, rec *AccountView, namespace Address, size int, floor FloorFunc) error {
	if rec.Exists && rec.Owner == namespace && len(rec.Data) == size {
		return nil
	}
	if rec.Exists && rec.Owner != ZeroAddress {
		return ErrInvalidAccount
	}
	if err := requireWritable(payer); err != nil {
		return err
	}

	amount := floor(size)
	if payer.Balance < amount {
		return ErrInsufficientBalance
	}
	payer.Balance -= amount
	rec.Balance = satAdd64(rec.Balance, amount)
	rec.Owner = namespace
	rec.Data = make([]byte, size)
	rec.Exists = true
	return nil
}

func requireSigner(v *AccountView) error {
	if !v.Signer {
		return ErrUnauthorized
	}
	return nil
}

func requireWritable(v *AccountView) error {
	if !v.Writable {
		return ErrInvalidAccount
	}
	return nil
}
