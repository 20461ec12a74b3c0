package ledgergate

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Store backends selectable in Config.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config is the node/CLI session configuration.
type Config struct {
	// Namespace is the bech32 address of the gateway namespace.
	Namespace string `yaml:"namespace"`
	// Keypair is the path of the signer key file.
	Keypair string `yaml:"keypair"`
	Store   StoreConfig `yaml:"store"`
}

// StoreConfig selects and configures the account store backend.
type StoreConfig struct {
	Backend     string `yaml:"backend"` // memory | redis | postgres
	RedisAddr   string `yaml:"redis_addr"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// LoadConfig reads and parses a YAML config file.
// Environment variables in the format ${VAR} are expanded before parsing.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("ledgergate: read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("ledgergate: parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the config for required fields and consistency.
func (c Config) Validate() error {
	if c.Namespace != "" {
		if _, err := ParseAddress(c.Namespace); err != nil {
			return fmt.Errorf("ledgergate: config: namespace: %w", err)
		}
	}

	switch c.Store.Backend {
	case "", StoreMemory:
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("ledgergate: config: redis backend requires redis_addr")
		}
	case StorePostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("ledgergate: config: postgres backend requires postgres_dsn")
		}
	default:
		return fmt.Errorf("ledgergate: config: unknown store backend %q", c.Store.Backend)
	}

	return nil
}
