package ledgergate_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lg "github.com/ineyio/ledgergate"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	ns := addr(3).String()
	path := writeConfig(t, `
namespace: `+ns+`
keypair: /var/lib/gateway/signer.key
store:
  backend: redis
  redis_addr: localhost:6379
`)

	cfg, err := lg.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ns, cfg.Namespace)
	assert.Equal(t, "/var/lib/gateway/signer.key", cfg.Keypair)
	assert.Equal(t, lg.StoreRedis, cfg.Store.Backend)
	assert.Equal(t, "localhost:6379", cfg.Store.RedisAddr)
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("GATEWAY_TEST_DSN", "postgres://gw:secret@db/ledger")

	path := writeConfig(t, `
store:
  backend: postgres
  postgres_dsn: ${GATEWAY_TEST_DSN}
`)

	cfg, err := lg.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://gw:secret@db/ledger", cfg.Store.PostgresDSN)
}

func TestLoadConfigDefaultsToMemory(t *testing.T) {
	cfg, err := lg.LoadConfig(writeConfig(t, "keypair: signer.key\n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Store.Backend)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad namespace":         "namespace: not-an-address\n",
		"unknown backend":       "store:\n  backend: sqlite\n",
		"redis without addr":    "store:\n  backend: redis\n",
		"postgres without dsn":  "store:\n  backend: postgres\n",
		"malformed yaml":        "store: [\n",
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := lg.LoadConfig(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := lg.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
