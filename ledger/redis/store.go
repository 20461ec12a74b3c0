// Package redis provides a Redis-backed AccountStore.
//
// Each account lives in a Redis hash; PutAll runs inside MULTI/EXEC so a
// transition's writes become visible together. Suitable for sharing one
// ledger between several CLI invocations or nodes, with the executing node
// holding the transaction lock.
package redis

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ineyio/ledgergate"
)

// Store is a Redis-backed AccountStore.
type Store struct {
	client    goredis.Cmdable
	keyPrefix string
}

var _ ledgergate.AccountStore = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithKeyPrefix sets the Redis key prefix (default "ledgergate:acct:").
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.keyPrefix = prefix }
}

// New creates a new Redis-backed AccountStore.
// The client must be a connected *goredis.Client or *goredis.ClusterClient.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{
		client:    client,
		keyPrefix: "ledgergate:acct:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) accountKey(addr ledgergate.Address) string {
	return s.keyPrefix + addr.String()
}

// Get loads one account.
func (s *Store) Get(ctx context.Context, addr ledgergate.Address) (ledgergate.StoredAccount, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.accountKey(addr)).Result()
	if err != nil {
		return ledgergate.StoredAccount{}, false, fmt.Errorf("ledgergate/redis: get %s: %w", addr, err)
	}
	if len(fields) == 0 {
		return ledgergate.StoredAccount{}, false, nil
	}

	acct := ledgergate.StoredAccount{Address: addr}

	ownerBytes, err := hex.DecodeString(fields["owner"])
	if err != nil || len(ownerBytes) != len(acct.Owner) {
		return ledgergate.StoredAccount{}, false, fmt.Errorf("ledgergate/redis: corrupt owner for %s", addr)
	}
	copy(acct.Owner[:], ownerBytes)

	acct.Balance, err = strconv.ParseUint(fields["balance"], 10, 64)
	if err != nil {
		return ledgergate.StoredAccount{}, false, fmt.Errorf("ledgergate/redis: corrupt balance for %s: %w", addr, err)
	}

	acct.Data, err = hex.DecodeString(fields["data"])
	if err != nil {
		return ledgergate.StoredAccount{}, false, fmt.Errorf("ledgergate/redis: corrupt data for %s: %w", addr, err)
	}

	return acct, true, nil
}

// PutAll upserts a batch of accounts inside a single MULTI/EXEC.
func (s *Store) PutAll(ctx context.Context, accounts []ledgergate.StoredAccount) error {
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, acct := range accounts {
			pipe.HSet(ctx, s.accountKey(acct.Address),
				"owner", hex.EncodeToString(acct.Owner[:]),
				"balance", strconv.FormatUint(acct.Balance, 10),
				"data", hex.EncodeToString(acct.Data),
			)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ledgergate/redis: put batch: %w", err)
	}
	return nil
}
