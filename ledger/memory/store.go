// Package memory provides an in-memory AccountStore.
//
// Single-process only; useful for tests, examples and dry runs. State is lost
// when the process exits.
package memory

import (
	"context"
	"sync"

	"github.com/ineyio/ledgergate"
)

// Store is an in-memory AccountStore.
type Store struct {
	mu       sync.RWMutex
	accounts map[ledgergate.Address]ledgergate.StoredAccount
}

var _ ledgergate.AccountStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{accounts: make(map[ledgergate.Address]ledgergate.StoredAccount)}
}

// Get loads one account.
func (s *Store) Get(_ context.Context, addr ledgergate.Address) (ledgergate.StoredAccount, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[addr]
	if !ok {
		return ledgergate.StoredAccount{}, false, nil
	}
	// Copy data so callers cannot alias stored bytes.
	acct.Data = append([]byte(nil), acct.Data...)
	return acct, true, nil
}

// PutAll upserts a batch of accounts. The write is atomic: the map is only
// touched under the write lock, after all copies are prepared.
func (s *Store) PutAll(_ context.Context, accounts []ledgergate.StoredAccount) error {
	prepared := make([]ledgergate.StoredAccount, len(accounts))
	for i, acct := range accounts {
		acct.Data = append([]byte(nil), acct.Data...)
		prepared[i] = acct
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range prepared {
		s.accounts[acct.Address] = acct
	}
	return nil
}

// Len returns the number of stored accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}
