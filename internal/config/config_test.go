package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "9Mp8VkLRUR1Gw6HSXmByjM4tqabaDnoTpDpbzMvsiQ2Y", cfg.Program.WrapperID)
	assert.Equal(t, 5, cfg.Relayer.MaxAttempts)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "continuum.yaml")
	content := `
solana:
  network: localnet
  rpc: ""
relayer:
  listen: ":9000"
  max_attempts: 3
  confirm_timeout: 5s
database:
  enabled: true
  type: postgres
  postgres:
    host: db
metrics:
  backend: prometheus
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8899", cfg.Solana.GetRPCEndpoint())
	assert.Equal(t, ":9000", cfg.Relayer.Listen)
	assert.Equal(t, 3, cfg.Relayer.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Relayer.ConfirmTimeout)
	assert.Equal(t, time.Second, cfg.Relayer.PollInterval)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, "db", cfg.Database.Postgres.Host)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "prometheus", cfg.Metrics.Backend)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CONTINUUM_LOG_LEVEL", "debug")
	t.Setenv("CONTINUUM_METRICS_BACKEND", "none")

	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "none", cfg.Metrics.Backend)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"database type", func(c *Config) { c.Database.Type = "mysql" }},
		{"metrics backend", func(c *Config) { c.Metrics.Backend = "statsd" }},
		{"commitment", func(c *Config) { c.Solana.Commitment = "max" }},
		{"max attempts", func(c *Config) { c.Relayer.MaxAttempts = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestGetRPCEndpoint(t *testing.T) {
	tests := []struct {
		network string
		want    string
	}{
		{"mainnet", "https://api.mainnet-beta.solana.com"},
		{"testnet", "https://api.testnet.solana.com"},
		{"localhost", "http://localhost:8899"},
		{"devnet", "https://api.devnet.solana.com"},
	}

	for _, tt := range tests {
		c := SolanaConfig{Network: tt.network}
		assert.Equal(t, tt.want, c.GetRPCEndpoint())
	}

	c := SolanaConfig{RPC: "http://custom:8899", Network: "mainnet"}
	assert.Equal(t, "http://custom:8899", c.GetRPCEndpoint())
}

func TestParsePools(t *testing.T) {
	doc := `
pools:
  - id: FWP3JA31eauPJA6RJftReaus3T75rUZc4xVCgGpz7CQQ
    name: SOL-USDC
    coin_decimals: 9
    pc_decimals: 6
  - id: 58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2
`
	pools, err := ParsePools([]byte(doc))
	require.NoError(t, err)
	require.Len(t, pools, 2)
	assert.Equal(t, "SOL-USDC", pools[0].Name)
	assert.Equal(t, uint8(9), pools[0].CoinDecimals)

	_, err = ParsePools([]byte("pools:\n  - name: no-id\n"))
	assert.Error(t, err)

	_, err = ParsePools([]byte("pools:\n  - id: a\n  - id: a\n"))
	assert.Error(t, err)
}

func TestLoadPoolsMissingFile(t *testing.T) {
	_, err := LoadPools(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
