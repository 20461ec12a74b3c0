// Command gateway-cli derives gateway addresses offline and submits signed
// gateway transactions against a configurable account store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/ineyio/ledgergate"
	"github.com/ineyio/ledgergate/keys"
	"github.com/ineyio/ledgergate/ledger/memory"
	ledgerpg "github.com/ineyio/ledgergate/ledger/postgres"
	ledgerredis "github.com/ineyio/ledgergate/ledger/redis"
	"github.com/ineyio/ledgergate/meter"
)

type cliFlags struct {
	configPath  string
	namespace   string
	keypair     string
	store       string
	redisAddr   string
	postgresDSN string
	verbose     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if code, ok := ledgergate.ErrorCode(err); ok {
			fmt.Fprintf(os.Stderr, "rejected (code=%d)\n", code)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}

	root := &cobra.Command{
		Use:           "gateway-cli",
		Short:         "CLI for the ledgergate on-ledger API billing gateway",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to a YAML config file")
	pf.StringVar(&flags.namespace, "namespace", "", "gateway namespace address (gate1...)")
	pf.StringVar(&flags.keypair, "keypair", "", "path to the signer key file")
	pf.StringVar(&flags.store, "store", "", "account store backend: memory | redis | postgres")
	pf.StringVar(&flags.redisAddr, "redis-addr", "", "redis address for the redis backend")
	pf.StringVar(&flags.postgresDSN, "postgres-dsn", "", "postgres DSN for the postgres backend")
	pf.BoolVar(&flags.verbose, "verbose", false, "log executed transitions")

	root.AddCommand(
		newKeygenCmd(),
		newDeriveGatewayCmd(flags),
		newDeriveConsumerCmd(flags),
		newInitGatewayCmd(flags),
		newRegisterConsumerCmd(flags),
		newTopUpCmd(flags),
		newConsumeCmd(flags),
		newFundCmd(flags),
		newBalanceCmd(flags),
	)
	return root
}

func newKeygenCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a signer keypair and write it to a key file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kp, err := keys.Generate()
			if err != nil {
				return err
			}
			if err := kp.Save(out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "address=%s\nkeypair=%s\n", kp.Address(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "gateway-key.hex", "output key file path")
	return cmd
}

func newDeriveGatewayCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "derive-gateway <admin>",
		Short: "Derive the gateway record address for an admin (offline)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, err := resolveNamespace(flags)
			if err != nil {
				return err
			}
			admin, err := ledgergate.ParseAddress(args[0])
			if err != nil {
				return err
			}
			addr, nonce := ledgergate.DeriveGatewayAddress(ns, admin)
			fmt.Fprintf(cmd.OutOrStdout(), "gateway=%s\nnonce=%d\n", addr, nonce)
			return nil
		},
	}
}

func newDeriveConsumerCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "derive-consumer <gateway> <owner> <api-key-id>",
		Short: "Derive the consumer record address for a triple (offline)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, err := resolveNamespace(flags)
			if err != nil {
				return err
			}
			gateway, err := ledgergate.ParseAddress(args[0])
			if err != nil {
				return err
			}
			owner, err := ledgergate.ParseAddress(args[1])
			if err != nil {
				return err
			}
			apiKeyID, err := parseUint(args[2], "api-key-id")
			if err != nil {
				return err
			}
			addr, nonce := ledgergate.DeriveConsumerAddress(ns, gateway, owner, apiKeyID)
			fmt.Fprintf(cmd.OutOrStdout(), "consumer=%s\nnonce=%d\n", addr, nonce)
			return nil
		},
	}
}

func newInitGatewayCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init-gateway <treasury> <backend-signer> <base-price> <max-surge-bps> <period-limit> <period-seconds> <bucket-capacity> <refill-per-second>",
		Short: "Create the gateway record for the signing admin",
		Args:  cobra.ExactArgs(8),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openSession(flags)
			if err != nil {
				return err
			}
			defer session.close()

			treasury, err := ledgergate.ParseAddress(args[0])
			if err != nil {
				return err
			}
			backend, err := ledgergate.ParseAddress(args[1])
			if err != nil {
				return err
			}
			basePrice, err := parseUint(args[2], "base-price")
			if err != nil {
				return err
			}
			maxSurge, err := strconv.ParseUint(args[3], 10, 16)
			if err != nil {
				return fmt.Errorf("invalid max-surge-bps %q: %w", args[3], err)
			}
			periodLimit, err := parseUint(args[4], "period-limit")
			if err != nil {
				return err
			}
			periodSeconds, err := strconv.ParseInt(args[5], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid period-seconds %q: %w", args[5], err)
			}
			bucketCapacity, err := parseUint(args[6], "bucket-capacity")
			if err != nil {
				return err
			}
			refill, err := parseUint(args[7], "refill-per-second")
			if err != nil {
				return err
			}

			admin := session.keypair.Address()
			gateway, _ := ledgergate.DeriveGatewayAddress(session.node.Namespace(), admin)

			tx := ledgergate.Transaction{
				Program: session.node.Namespace(),
				Accounts: []ledgergate.AccountMeta{
					{Address: admin, Signer: true, Writable: true},
					{Address: gateway, Writable: true},
					{Address: treasury},
					{Address: backend},
				},
				Payload: ledgergate.EncodeInstruction(ledgergate.InitializeGateway{
					BasePrice:       basePrice,
					MaxSurgeBps:     uint16(maxSurge),
					PeriodLimit:     periodLimit,
					PeriodSeconds:   periodSeconds,
					BucketCapacity:  bucketCapacity,
					RefillPerSecond: refill,
				}),
			}
			session.keypair.SignTx(&tx)

			receipt, err := session.node.Execute(cmd.Context(), tx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "gateway=%s\nreceipt=%s\n", gateway, receipt.ID)
			return nil
		},
	}
}

func newRegisterConsumerCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "register-consumer <gateway> <api-key-id> <api-key>",
		Short: "Create a consumer record for the signing owner",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openSession(flags)
			if err != nil {
				return err
			}
			defer session.close()

			gateway, err := ledgergate.ParseAddress(args[0])
			if err != nil {
				return err
			}
			apiKeyID, err := parseUint(args[1], "api-key-id")
			if err != nil {
				return err
			}

			owner := session.keypair.Address()
			consumer, _ := ledgergate.DeriveConsumerAddress(session.node.Namespace(), gateway, owner, apiKeyID)

			tx := ledgergate.Transaction{
				Program: session.node.Namespace(),
				Accounts: []ledgergate.AccountMeta{
					{Address: owner, Signer: true, Writable: true},
					{Address: gateway},
					{Address: consumer, Writable: true},
				},
				Payload: ledgergate.EncodeInstruction(ledgergate.RegisterConsumer{
					APIKeyID:   apiKeyID,
					APIKeyHash: ledgergate.HashAPIKey(args[2]),
				}),
			}
			session.keypair.SignTx(&tx)

			receipt, err := session.node.Execute(cmd.Context(), tx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "consumer=%s\nreceipt=%s\n", consumer, receipt.ID)
			return nil
		},
	}
}

func newTopUpCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "topup <consumer> <amount>",
		Short: "Move prepaid balance from the signing owner into a consumer record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openSession(flags)
			if err != nil {
				return err
			}
			defer session.close()

			consumer, err := ledgergate.ParseAddress(args[0])
			if err != nil {
				return err
			}
			amount, err := parseUint(args[1], "amount")
			if err != nil {
				return err
			}

			owner := session.keypair.Address()
			tx := ledgergate.Transaction{
				Program: session.node.Namespace(),
				Accounts: []ledgergate.AccountMeta{
					{Address: owner, Signer: true, Writable: true},
					{Address: consumer, Writable: true},
				},
				Payload: ledgergate.EncodeInstruction(ledgergate.TopUp{Amount: amount}),
			}
			session.keypair.SignTx(&tx)

			receipt, err := session.node.Execute(cmd.Context(), tx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "receipt=%s\n", receipt.ID)
			return nil
		},
	}
}

func newConsumeCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "consume <gateway> <consumer> <treasury> <api-key-id> <api-key>",
		Short: "Charge a consumer for one API call (backend signer only)",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openSession(flags)
			if err != nil {
				return err
			}
			defer session.close()

			gateway, err := ledgergate.ParseAddress(args[0])
			if err != nil {
				return err
			}
			consumer, err := ledgergate.ParseAddress(args[1])
			if err != nil {
				return err
			}
			treasury, err := ledgergate.ParseAddress(args[2])
			if err != nil {
				return err
			}
			apiKeyID, err := parseUint(args[3], "api-key-id")
			if err != nil {
				return err
			}

			tx := ledgergate.Transaction{
				Program: session.node.Namespace(),
				Accounts: []ledgergate.AccountMeta{
					{Address: session.keypair.Address(), Signer: true},
					{Address: gateway},
					{Address: consumer, Writable: true},
					{Address: treasury, Writable: true},
				},
				Payload: ledgergate.EncodeInstruction(ledgergate.Consume{
					APIKeyID:      apiKeyID,
					PresentedHash: ledgergate.HashAPIKey(args[4]),
				}),
			}
			session.keypair.SignTx(&tx)

			receipt, err := session.node.Execute(cmd.Context(), tx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "charge=%d\nreceipt=%s\n", receipt.Charge, receipt.ID)
			return nil
		},
	}
}

func newFundCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "fund <address> <amount>",
		Short: "Credit an address directly (local/dev ledgers only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openSession(flags)
			if err != nil {
				return err
			}
			defer session.close()

			addr, err := ledgergate.ParseAddress(args[0])
			if err != nil {
				return err
			}
			amount, err := parseUint(args[1], "amount")
			if err != nil {
				return err
			}
			if err := session.node.Fund(cmd.Context(), addr, amount); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "funded=%s amount=%d\n", addr, amount)
			return nil
		},
	}
}

func newBalanceCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <address>",
		Short: "Show the stored balance of an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openSession(flags)
			if err != nil {
				return err
			}
			defer session.close()

			addr, err := ledgergate.ParseAddress(args[0])
			if err != nil {
				return err
			}
			acct, ok, err := session.node.GetAccount(cmd.Context(), addr)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("account %s not found", addr)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "balance=%d\n", acct.Balance)
			return nil
		},
	}
}

// session holds everything an online command needs.
type session struct {
	node    *ledgergate.Node
	keypair *keys.Keypair
	close   func()
}

// openSession resolves config, loads the signer key and opens the store.
func openSession(flags *cliFlags) (*session, error) {
	cfg, err := resolveConfig(flags)
	if err != nil {
		return nil, err
	}

	if cfg.Keypair == "" {
		return nil, fmt.Errorf("a keypair is required (--keypair or config)")
	}
	kp, err := keys.Load(cfg.Keypair)
	if err != nil {
		return nil, err
	}

	ns, err := ledgergate.ParseAddress(cfg.Namespace)
	if err != nil {
		return nil, fmt.Errorf("namespace: %w", err)
	}

	store, closeStore, err := openStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	var m ledgergate.Meter = &meter.NoopMeter{}
	if flags.verbose {
		m = meter.NewLogMeter(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	}

	node := ledgergate.NewNode(store, ns,
		ledgergate.WithVerifier(keys.Verifier{}),
		ledgergate.WithMeter(m),
	)
	return &session{node: node, keypair: kp, close: closeStore}, nil
}

func openStore(cfg ledgergate.StoreConfig) (ledgergate.AccountStore, func(), error) {
	switch cfg.Backend {
	case "", ledgergate.StoreMemory:
		return memory.New(), func() {}, nil

	case ledgergate.StoreRedis:
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, nil, fmt.Errorf("redis not available at %s: %w", cfg.RedisAddr, err)
		}
		return ledgerredis.New(client), func() { client.Close() }, nil

	case ledgergate.StorePostgres:
		pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		store := ledgerpg.New(pool)
		if err := store.EnsureSchema(context.Background()); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

// resolveConfig merges the optional config file with command-line overrides.
func resolveConfig(flags *cliFlags) (ledgergate.Config, error) {
	var cfg ledgergate.Config
	if flags.configPath != "" {
		loaded, err := ledgergate.LoadConfig(flags.configPath)
		if err != nil {
			return ledgergate.Config{}, err
		}
		cfg = loaded
	}

	if flags.namespace != "" {
		cfg.Namespace = flags.namespace
	}
	if flags.keypair != "" {
		cfg.Keypair = flags.keypair
	}
	if flags.store != "" {
		cfg.Store.Backend = flags.store
	}
	if flags.redisAddr != "" {
		cfg.Store.RedisAddr = flags.redisAddr
	}
	if flags.postgresDSN != "" {
		cfg.Store.PostgresDSN = flags.postgresDSN
	}

	if cfg.Namespace == "" {
		return ledgergate.Config{}, fmt.Errorf("a namespace is required (--namespace or config)")
	}
	return cfg, cfg.Validate()
}

func resolveNamespace(flags *cliFlags) (ledgergate.Address, error) {
	ns := flags.namespace
	if ns == "" && flags.configPath != "" {
		cfg, err := ledgergate.LoadConfig(flags.configPath)
		if err != nil {
			return ledgergate.ZeroAddress, err
		}
		ns = cfg.Namespace
	}
	if ns == "" {
		return ledgergate.ZeroAddress, fmt.Errorf("a namespace is required (--namespace or config)")
	}
	return ledgergate.ParseAddress(ns)
}

func parseUint(s, name string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return v, nil
}
