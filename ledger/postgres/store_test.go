//go:build integration

package postgres_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ineyio/ledgergate"
	ledgerpg "github.com/ineyio/ledgergate/ledger/postgres"
)

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "postgres://localhost:5432/ledgergate_test?sslmode=disable"
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("pgxpool: %v", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		t.Fatalf("postgres not available: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

func newTestStore(t *testing.T, pool *pgxpool.Pool) *ledgerpg.Store {
	t.Helper()
	// Use a unique prefix per test to avoid collisions.
	prefix := fmt.Sprintf("test_%s_", strings.ToLower(t.Name()))
	s := ledgerpg.New(pool, ledgerpg.WithTablePrefix(prefix))

	ctx := context.Background()
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	t.Cleanup(func() {
		pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %saccounts", prefix))
	})
	return s
}

func testAddr(seed byte) ledgergate.Address {
	var a ledgergate.Address
	for i := range a {
		a[i] = seed
	}
	return a
}

func TestPutAndGet(t *testing.T) {
	pool := newTestPool(t)
	store := newTestStore(t, pool)
	ctx := context.Background()

	acct := ledgergate.StoredAccount{
		Address: testAddr(1),
		Owner:   testAddr(2),
		Balance: 5_000_000,
		Data:    []byte{1, 2, 3, 4},
	}
	if err := store.PutAll(ctx, []ledgergate.StoredAccount{acct}); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := store.Get(ctx, acct.Address)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("expected account to exist")
	}
	if got.Owner != acct.Owner || got.Balance != acct.Balance || !bytes.Equal(got.Data, acct.Data) {
		t.Fatalf("unexpected account: %+v", got)
	}
}

func TestGetMissing(t *testing.T) {
	pool := newTestPool(t)
	store := newTestStore(t, pool)

	_, ok, err := store.Get(context.Background(), testAddr(9))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("expected missing account")
	}
}

func TestUpsertOverwrites(t *testing.T) {
	pool := newTestPool(t)
	store := newTestStore(t, pool)
	ctx := context.Background()

	addr := testAddr(1)
	first := ledgergate.StoredAccount{Address: addr, Balance: 100, Data: []byte{1}}
	second := ledgergate.StoredAccount{Address: addr, Owner: testAddr(2), Balance: 50, Data: []byte{2, 3}}

	if err := store.PutAll(ctx, []ledgergate.StoredAccount{first}); err != nil {
		t.Fatalf("put first: %v", err)
	}
	if err := store.PutAll(ctx, []ledgergate.StoredAccount{second}); err != nil {
		t.Fatalf("put second: %v", err)
	}

	got, _, err := store.Get(ctx, addr)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Balance != 50 || got.Owner != second.Owner || !bytes.Equal(got.Data, []byte{2, 3}) {
		t.Fatalf("unexpected account after upsert: %+v", got)
	}
}

func TestBatchCommitsTogether(t *testing.T) {
	pool := newTestPool(t)
	store := newTestStore(t, pool)
	ctx := context.Background()

	batch := []ledgergate.StoredAccount{
		{Address: testAddr(1), Balance: 10},
		{Address: testAddr(2), Balance: 20},
		{Address: testAddr(3), Balance: 30, Data: []byte{7}},
	}
	if err := store.PutAll(ctx, batch); err != nil {
		t.Fatalf("put batch: %v", err)
	}

	for _, want := range batch {
		got, ok, err := store.Get(ctx, want.Address)
		if err != nil {
			t.Fatalf("get %s: %v", want.Address, err)
		}
		if !ok || got.Balance != want.Balance {
			t.Fatalf("unexpected account %s: %+v", want.Address, got)
		}
	}
}

func TestTablePrefixIsolation(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	s1 := ledgerpg.New(pool, ledgerpg.WithTablePrefix("test_iso1_"))
	s2 := ledgerpg.New(pool, ledgerpg.WithTablePrefix("test_iso2_"))

	if err := s1.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema s1: %v", err)
	}
	if err := s2.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema s2: %v", err)
	}
	t.Cleanup(func() {
		pool.Exec(ctx, "DROP TABLE IF EXISTS test_iso1_accounts, test_iso2_accounts")
	})

	addr := testAddr(1)
	if err := s1.PutAll(ctx, []ledgergate.StoredAccount{{Address: addr, Balance: 100}}); err != nil {
		t.Fatalf("put s1: %v", err)
	}
	if err := s2.PutAll(ctx, []ledgergate.StoredAccount{{Address: addr, Balance: 200}}); err != nil {
		t.Fatalf("put s2: %v", err)
	}

	a1, _, _ := s1.Get(ctx, addr)
	a2, _, _ := s2.Get(ctx, addr)
	if a1.Balance != 100 {
		t.Fatalf("s1 expected 100, got %d", a1.Balance)
	}
	if a2.Balance != 200 {
		t.Fatalf("s2 expected 200, got %d", a2.Balance)
	}
}

func TestNodeLifecycleOverPostgres(t *testing.T) {
	pool := newTestPool(t)
	store := newTestStore(t, pool)
	ctx := context.Background()

	namespace := testAddr(0xAA)
	node := ledgergate.NewNode(store, namespace)

	admin := testAddr(0x20)
	gateway, _ := ledgergate.DeriveGatewayAddress(namespace, admin)

	if err := node.Fund(ctx, admin, 10*ledgergate.DefaultFloor(ledgergate.GatewayConfigLen)); err != nil {
		t.Fatalf("fund: %v", err)
	}

	tx := ledgergate.Transaction{
		Program: namespace,
		Accounts: []ledgergate.AccountMeta{
			{Address: admin, Signer: true, Writable: true},
			{Address: gateway, Writable: true},
			{Address: testAddr(0x30)},
			{Address: testAddr(0x40)},
		},
		Payload: ledgergate.EncodeInstruction(ledgergate.InitializeGateway{
			BasePrice: 1_000, PeriodLimit: 100, PeriodSeconds: 60,
		}),
		Signatures: []ledgergate.SignatureEntry{{Signer: admin}},
	}
	if _, err := node.Execute(ctx, tx); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	stored, ok, err := node.GetAccount(ctx, gateway)
	if err != nil {
		t.Fatalf("get gateway: %v", err)
	}
	if !ok {
		t.Fatal("expected gateway record")
	}
	cfg, err := ledgergate.UnmarshalGatewayConfig(stored.Data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !cfg.Initialized || cfg.Admin != admin {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}
