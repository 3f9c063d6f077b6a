package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `
log:
  level: debug
  format: text
chains:
  - name: ethereum
    alias: Ethereum Mainnet
    enabled: true
    chain_id: 1
    rpc_url: https://eth.llamarpc.com
    explorer_url: https://etherscan.io
    explorer_api_url: https://api.etherscan.io/api
    explorer_api_key: test-key
  - name: arbitrum
    alias: Arbitrum One
    enabled: false
    chain_id: 42161
    rpc_url: https://arb1.arbitrum.io/rpc
    explorer_api_url: https://api.arbiscan.io/api
sampler:
  worker_count: 2
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Setenv(ConfigContentEnv, "")
	path := writeConfig(t, testConfigYAML)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "stdout", cfg.Log.Output)
	require.Len(t, cfg.Chains, 2)
	assert.Equal(t, uint64(1), cfg.Chains[0].ChainID)
	assert.Equal(t, "Ethereum Mainnet", cfg.Chains[0].Alias)
	assert.Equal(t, "test-key", cfg.Chains[0].ExplorerAPIKey)

	// defaults
	assert.Equal(t, 1000, cfg.Sampler.PageSize)
	assert.Equal(t, 100, cfg.Sampler.SignatureCacheSize)
	assert.Equal(t, 2, cfg.Sampler.WorkerCount)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.InitialInterval)
	assert.Equal(t, 8080, cfg.API.Port)
}

func TestLoadConfigFromEnvContent(t *testing.T) {
	t.Setenv(ConfigContentEnv, testConfigYAML)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Len(t, cfg.EnabledChains(), 1)
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Setenv(ConfigContentEnv, "")

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestChainByName(t *testing.T) {
	t.Setenv(ConfigContentEnv, testConfigYAML)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	chain, err := cfg.ChainByName("ethereum")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), chain.ChainID)

	chain, err = cfg.ChainByName("Ethereum Mainnet")
	require.NoError(t, err)
	assert.Equal(t, "ethereum", chain.Name)

	// disabled chains are not addressable
	_, err = cfg.ChainByName("arbitrum")
	assert.Error(t, err)
}

func validConfig() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "json", Output: "stdout"},
		API: APIConfig{Enabled: true, Port: 8080},
		Chains: []ChainConfig{{
			Name:           "ethereum",
			Enabled:        true,
			ChainID:        1,
			RPCURL:         "https://eth.llamarpc.com",
			ExplorerAPIURL: "https://api.etherscan.io/api",
		}},
		Retry: RetryConfig{
			MaxAttempts:     3,
			InitialInterval: time.Second,
			MaxInterval:     10 * time.Second,
			Multiplier:      2,
		},
		Sampler: SamplerConfig{
			PageSize:           1000,
			SignatureCacheSize: 100,
			WorkerCount:        1,
			RequestTimeout:     time.Minute,
		},
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, true},
		{"file output without path", func(c *Config) { c.Log.Output = "file" }, true},
		{"no enabled chain", func(c *Config) { c.Chains[0].Enabled = false }, true},
		{"zero chain id", func(c *Config) { c.Chains[0].ChainID = 0 }, true},
		{"rpc url without scheme", func(c *Config) { c.Chains[0].RPCURL = "eth.llamarpc.com" }, true},
		{"missing explorer api", func(c *Config) { c.Chains[0].ExplorerAPIURL = "" }, true},
		{"duplicate chain", func(c *Config) { c.Chains = append(c.Chains, c.Chains[0]) }, true},
		{"zero page size", func(c *Config) { c.Sampler.PageSize = 0 }, true},
		{"zero workers", func(c *Config) { c.Sampler.WorkerCount = 0 }, true},
		{"multiplier below one", func(c *Config) { c.Retry.Multiplier = 0.5 }, true},
		{"bad api port", func(c *Config) { c.API.Port = 70000 }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
