package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigContentEnv holds the whole YAML document; when set it takes precedence over the config file
const ConfigContentEnv = "CONFIG_CONTENT"

// Config global configuration structure
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	API     APIConfig     `mapstructure:"api"`
	Chains  []ChainConfig `mapstructure:"chains"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Sampler SamplerConfig `mapstructure:"sampler"`
}

// LogConfig log configuration
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

// ChainConfig EVM chain configuration
type ChainConfig struct {
	Name              string   `mapstructure:"name"`
	Alias             string   `mapstructure:"alias"` // Display name, e.g. "Ethereum Mainnet"
	Enabled           bool     `mapstructure:"enabled"`
	ChainID           uint64   `mapstructure:"chain_id"`
	RPCURL            string   `mapstructure:"rpc_url"`         // Primary RPC endpoint
	BackupRPCURLs     []string `mapstructure:"backup_rpc_urls"` // Backup RPC endpoints
	RateLimit         float64  `mapstructure:"rate_limit"`      // RPC request rate limit (requests/second)
	ExplorerURL       string   `mapstructure:"explorer_url"`    // Block explorer web UI, e.g. https://etherscan.io
	ExplorerAPIURL    string   `mapstructure:"explorer_api_url"`
	ExplorerAPIKey    string   `mapstructure:"explorer_api_key"`
	ExplorerRateLimit float64  `mapstructure:"explorer_rate_limit"` // Explorer request rate limit (requests/second)
}

// RetryConfig retry configuration
type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
}

// SamplerConfig sampling pipeline configuration
type SamplerConfig struct {
	PageSize           int           `mapstructure:"page_size"`            // Max explorer transactions per sample request
	SignatureCacheSize int           `mapstructure:"signature_cache_size"` // Signature map LRU capacity
	WorkerCount        int           `mapstructure:"worker_count"`         // Concurrent hydrations per sample request
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
}

// APIConfig API service configuration
type APIConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	AuthToken string `mapstructure:"auth_token"` // API authentication token
}

// LoadConfig loads configuration from CONFIG_CONTENT or from the file at configPath
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SAMPLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	if content := os.Getenv(ConfigContentEnv); content != "" {
		if err := v.ReadConfig(strings.NewReader(content)); err != nil {
			return nil, fmt.Errorf("failed to read config from %s: %w", ConfigContentEnv, err)
		}
	} else {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default values
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("api.enabled", true)
	v.SetDefault("api.host", "127.0.0.1")
	v.SetDefault("api.port", 8080)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_interval", "1s")
	v.SetDefault("retry.max_interval", "30s")
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("sampler.page_size", 1000)
	v.SetDefault("sampler.signature_cache_size", 100)
	v.SetDefault("sampler.worker_count", 1)
	v.SetDefault("sampler.request_timeout", "120s")
}

// EnabledChains returns the enabled chains in configuration order
func (c *Config) EnabledChains() []ChainConfig {
	chains := make([]ChainConfig, 0, len(c.Chains))
	for _, chain := range c.Chains {
		if chain.Enabled {
			chains = append(chains, chain)
		}
	}
	return chains
}

// ChainByName finds an enabled chain by name or alias
func (c *Config) ChainByName(name string) (ChainConfig, error) {
	for _, chain := range c.Chains {
		if !chain.Enabled {
			continue
		}
		if chain.Name == name || (chain.Alias != "" && chain.Alias == name) {
			return chain, nil
		}
	}
	return ChainConfig{}, fmt.Errorf("chain with name '%s' not found", name)
}

// Validate verifies the configuration values
func (c *Config) Validate() error {
	// 1. verify log configuration
	if err := c.validateLog(); err != nil {
		return fmt.Errorf("failed to validate log config: %w", err)
	}

	// 2. verify API configuration
	if err := c.validateAPI(); err != nil {
		return fmt.Errorf("failed to validate api config: %w", err)
	}

	// 3. verify at least one chain is enabled
	if len(c.EnabledChains()) == 0 {
		return fmt.Errorf("need to enable at least one blockchain")
	}

	// 4. verify chain configuration
	seen := make(map[string]bool)
	for i, chain := range c.Chains {
		if !chain.Enabled {
			continue
		}
		if err := c.validateChain(&chain); err != nil {
			return fmt.Errorf("failed to validate chain[%d](%s) config: %w", i, chain.Name, err)
		}
		if seen[chain.Name] {
			return fmt.Errorf("duplicate chain name: %s", chain.Name)
		}
		seen[chain.Name] = true
	}

	// 5. verify retry configuration
	if err := c.validateRetry(); err != nil {
		return fmt.Errorf("failed to validate retry config: %w", err)
	}

	// 6. verify sampler configuration
	if err := c.validateSampler(); err != nil {
		return fmt.Errorf("failed to validate sampler config: %w", err)
	}

	return nil
}

// validateLog verifies the log configuration
func (c *Config) validateLog() error {
	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Log.Level) {
		return fmt.Errorf("invalid log level: %s, valid values: %v", c.Log.Level, validLevels)
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, c.Log.Format) {
		return fmt.Errorf("invalid log format: %s, valid values: %v", c.Log.Format, validFormats)
	}

	validOutputs := []string{"stdout", "file", "both"}
	if !contains(validOutputs, c.Log.Output) {
		return fmt.Errorf("invalid log output: %s, valid values: %v", c.Log.Output, validOutputs)
	}

	if (c.Log.Output == "file" || c.Log.Output == "both") && c.Log.FilePath == "" {
		return fmt.Errorf("log output is file or both, file_path must be specified")
	}

	return nil
}

// validateAPI verifies the API configuration
func (c *Config) validateAPI() error {
	if !c.API.Enabled {
		return nil
	}

	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("invalid api port: %d", c.API.Port)
	}

	return nil
}

// validateChain verifies the chain configuration
func (c *Config) validateChain(chain *ChainConfig) error {
	if chain.Name == "" {
		return fmt.Errorf("chain name cannot be empty")
	}

	if chain.ChainID == 0 {
		return fmt.Errorf("chain_id cannot be 0")
	}

	if chain.RPCURL == "" {
		return fmt.Errorf("rpc_url cannot be empty")
	}

	// verify RPC URL format
	if err := validateURL(chain.RPCURL); err != nil {
		return fmt.Errorf("invalid rpc_url: %w", err)
	}

	for i, backup := range chain.BackupRPCURLs {
		if err := validateURL(backup); err != nil {
			return fmt.Errorf("invalid backup_rpc_urls[%d]: %w", i, err)
		}
	}

	if chain.ExplorerAPIURL == "" {
		return fmt.Errorf("explorer_api_url cannot be empty")
	}

	if err := validateURL(chain.ExplorerAPIURL); err != nil {
		return fmt.Errorf("invalid explorer_api_url: %w", err)
	}

	if chain.ExplorerURL != "" {
		if err := validateURL(chain.ExplorerURL); err != nil {
			return fmt.Errorf("invalid explorer_url: %w", err)
		}
	}

	if chain.RateLimit < 0 || chain.ExplorerRateLimit < 0 {
		return fmt.Errorf("rate limits cannot be negative")
	}

	return nil
}

// validateRetry verifies the retry configuration
func (c *Config) validateRetry() error {
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1")
	}

	if c.Retry.InitialInterval < 0 {
		return fmt.Errorf("initial_interval cannot be negative")
	}

	if c.Retry.MaxInterval < c.Retry.InitialInterval {
		return fmt.Errorf("max_interval cannot be less than initial_interval")
	}

	if c.Retry.Multiplier < 1.0 {
		return fmt.Errorf("multiplier cannot be less than 1.0")
	}

	return nil
}

// validateSampler verifies the sampler configuration
func (c *Config) validateSampler() error {
	if c.Sampler.PageSize <= 0 || c.Sampler.PageSize > 10000 {
		return fmt.Errorf("page_size must be between 1 and 10000")
	}

	if c.Sampler.SignatureCacheSize <= 0 {
		return fmt.Errorf("signature_cache_size must be greater than 0")
	}

	if c.Sampler.WorkerCount <= 0 {
		return fmt.Errorf("worker_count must be greater than 0")
	}

	if c.Sampler.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be greater than 0")
	}

	return nil
}

// validateURL verifies the URL format
func validateURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("URL parsing failed: %w", err)
	}

	if parsedURL.Scheme == "" {
		return fmt.Errorf("URL is missing scheme (http/https/ws/wss)")
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("URL is missing host")
	}

	return nil
}

// contains checks if a string slice contains a specified string
func contains(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}
