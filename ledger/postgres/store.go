// Package postgres provides a PostgreSQL-backed AccountStore.
//
// Accounts live in a single table; PutAll runs in one transaction so a
// transition's writes commit together. This gives durability across restarts
// and lets several CLI invocations or nodes share one ledger.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ineyio/ledgergate"
)

// Store is a PostgreSQL-backed AccountStore.
type Store struct {
	pool        *pgxpool.Pool
	tablePrefix string
}

var _ ledgergate.AccountStore = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithTablePrefix sets the table name prefix (default "ledgergate_").
func WithTablePrefix(prefix string) Option {
	return func(s *Store) { s.tablePrefix = prefix }
}

// New creates a new PostgreSQL-backed AccountStore.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		pool:        pool,
		tablePrefix: "ledgergate_",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) accountsTable() string { return s.tablePrefix + "accounts" }

// EnsureSchema creates the required table if it doesn't exist.
//
// Balances are stored as BIGINT; the host floor and charge arithmetic keep
// real balances far below the int64 ceiling.
func (s *Store) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			address TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			balance BIGINT NOT NULL DEFAULT 0,
			data BYTEA NOT NULL DEFAULT ''::bytea
		);
	`, s.accountsTable())
	_, err := s.pool.Exec(ctx, q)
	if err != nil {
		return fmt.Errorf("ledgergate/postgres: ensure schema: %w", err)
	}
	return nil
}

// Get loads one account.
func (s *Store) Get(ctx context.Context, addr ledgergate.Address) (ledgergate.StoredAccount, bool, error) {
	q := fmt.Sprintf("SELECT owner, balance, data FROM %s WHERE address = $1", s.accountsTable())

	var (
		ownerText string
		balance   int64
		data      []byte
	)
	err := s.pool.QueryRow(ctx, q, addr.String()).Scan(&ownerText, &balance, &data)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledgergate.StoredAccount{}, false, nil
	}
	if err != nil {
		return ledgergate.StoredAccount{}, false, fmt.Errorf("ledgergate/postgres: get %s: %w", addr, err)
	}

	owner, err := ledgergate.ParseAddress(ownerText)
	if err != nil {
		return ledgergate.StoredAccount{}, false, fmt.Errorf("ledgergate/postgres: corrupt owner for %s: %w", addr, err)
	}

	return ledgergate.StoredAccount{
		Address: addr,
		Owner:   owner,
		Balance: uint64(balance),
		Data:    data,
	}, true, nil
}

// PutAll upserts a batch of accounts in one transaction.
func (s *Store) PutAll(ctx context.Context, accounts []ledgergate.StoredAccount) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ledgergate/postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	q := fmt.Sprintf(`
		INSERT INTO %s (address, owner, balance, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (address) DO UPDATE
		SET owner = EXCLUDED.owner, balance = EXCLUDED.balance, data = EXCLUDED.data
	`, s.accountsTable())

	for _, acct := range accounts {
		if _, err := tx.Exec(ctx, q, acct.Address.String(), acct.Owner.String(), int64(acct.Balance), acct.Data); err != nil {
			return fmt.Errorf("ledgergate/postgres: upsert %s: %w", acct.Address, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ledgergate/postgres: commit: %w", err)
	}
	return nil
}
