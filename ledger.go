package ledgergate

import "context"

// StoredAccount is the persisted form of a ledger account.
type StoredAccount struct {
	Address Address
	Owner   Address
	Balance uint64
	Data    []byte
}

// AccountStore persists accounts keyed by address.
//
// PutAll must apply the whole batch atomically: a transition's writes become
// visible together or not at all. Stores need not serialize callers; the
// executing node holds the transaction lock across Get and PutAll.
type AccountStore interface {
	// Get loads one account. The boolean is false when the address has
	// never been written.
	Get(ctx context.Context, addr Address) (StoredAccount, bool, error)

	// PutAll upserts a batch of accounts atomically.
	PutAll(ctx context.Context, accounts []StoredAccount) error
}
