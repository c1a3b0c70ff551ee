package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Solana    SolanaConfig   `mapstructure:"solana"`
	Program   ProgramConfig  `mapstructure:"program"`
	Relayer   RelayerConfig  `mapstructure:"relayer"`
	Database  DatabaseConfig `mapstructure:"database"`
	Redis     RedisConfig    `mapstructure:"redis"`
	Log       LogConfig      `mapstructure:"log"`
	Metrics   MetricsConfig  `mapstructure:"metrics"`
	PoolsFile string         `mapstructure:"pools_file"`
}

// SolanaConfig holds Solana-specific configuration
type SolanaConfig struct {
	RPC        string `mapstructure:"rpc"`
	Network    string `mapstructure:"network"`
	Timeout    int    `mapstructure:"timeout"` // in seconds
	Commitment string `mapstructure:"commitment"`
}

// ProgramConfig names the on-chain programs the client talks to.
type ProgramConfig struct {
	WrapperID string `mapstructure:"wrapper_id"`
	AmmID     string `mapstructure:"amm_id"`
}

// RelayerConfig holds submission and HTTP service settings.
type RelayerConfig struct {
	Listen         string        `mapstructure:"listen"`
	Keypair        string        `mapstructure:"keypair"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	RateLimit      float64       `mapstructure:"rate_limit"` // requests per second
	Burst          int           `mapstructure:"burst"`
}

// DatabaseConfig selects and configures the submission history store.
type DatabaseConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Type     string         `mapstructure:"type"` // memory, postgres or mongodb
	Postgres PostgresConfig `mapstructure:"postgres"`
	MongoDB  MongoDBConfig  `mapstructure:"mongodb"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // in seconds
}

// MongoDBConfig holds MongoDB connection settings.
type MongoDBConfig struct {
	URI            string `mapstructure:"uri"`
	Database       string `mapstructure:"database"`
	MaxPoolSize    uint64 `mapstructure:"max_pool_size"`
	MinPoolSize    uint64 `mapstructure:"min_pool_size"`
	ConnectTimeout int    `mapstructure:"connect_timeout"` // in seconds
}

// RedisConfig configures the cross-replica in-flight guard.
type RedisConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	TTL       time.Duration `mapstructure:"ttl"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"` // json or text
	File      string `mapstructure:"file"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
	Compress  bool   `mapstructure:"compress"`
}

// MetricsConfig selects the metrics backend.
type MetricsConfig struct {
	Backend   string `mapstructure:"backend"` // comma separated: log, prometheus, none
	Namespace string `mapstructure:"namespace"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Solana: SolanaConfig{
			RPC:        "https://api.devnet.solana.com",
			Network:    "devnet",
			Timeout:    30,
			Commitment: "confirmed",
		},
		Program: ProgramConfig{
			WrapperID: "9Mp8VkLRUR1Gw6HSXmByjM4tqabaDnoTpDpbzMvsiQ2Y",
			AmmID:     "HWy1jotHpo6UqeQxx49dpYYdQB8wj9Qk9MdxwjLvDHB8",
		},
		Relayer: RelayerConfig{
			Listen:         ":8080",
			Keypair:        "~/.config/solana/id.json",
			MaxAttempts:    5,
			ConfirmTimeout: 30 * time.Second,
			PollInterval:   time.Second,
			RateLimit:      10,
			Burst:          20,
		},
		Database: DatabaseConfig{
			Enabled: false,
			Type:    "memory",
			Postgres: PostgresConfig{
				Host:            "localhost",
				Port:            5432,
				User:            "continuum",
				Database:        "continuum",
				SSLMode:         "disable",
				MaxOpenConns:    10,
				MaxIdleConns:    2,
				ConnMaxLifetime: 300,
			},
			MongoDB: MongoDBConfig{
				URI:            "mongodb://localhost:27017",
				Database:       "continuum",
				MaxPoolSize:    20,
				MinPoolSize:    1,
				ConnectTimeout: 10,
			},
		},
		Redis: RedisConfig{
			Enabled:   false,
			Addr:      "localhost:6379",
			TTL:       2 * time.Minute,
			KeyPrefix: "continuum",
		},
		Log: LogConfig{
			Level:     "info",
			Format:    "text",
			MaxSizeMB: 100,
		},
		Metrics: MetricsConfig{
			Backend:   "log",
			Namespace: "continuum",
		},
		PoolsFile: "pools.yaml",
	}
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(".continuum")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	// Environment variables
	v.SetEnvPrefix("CONTINUUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// bindEnv registers the keys most often overridden from the environment so
// that AutomaticEnv sees them even when no config file mentions them.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"solana.rpc", "solana.network", "solana.commitment",
		"program.wrapper_id", "program.amm_id",
		"relayer.listen", "relayer.keypair", "relayer.max_attempts",
		"database.enabled", "database.type", "database.postgres.password",
		"redis.enabled", "redis.addr", "redis.password",
		"log.level", "log.format", "log.file",
		"metrics.backend", "pools_file",
	} {
		_ = v.BindEnv(key)
	}
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "memory", "postgres", "mongodb":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	for _, backend := range strings.Split(c.Metrics.Backend, ",") {
		switch strings.TrimSpace(backend) {
		case "log", "prometheus", "none":
		default:
			return fmt.Errorf("unsupported metrics backend: %s", c.Metrics.Backend)
		}
	}

	switch c.Solana.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("unsupported commitment: %s", c.Solana.Commitment)
	}

	if c.Relayer.MaxAttempts < 1 {
		return fmt.Errorf("relayer.max_attempts must be at least 1")
	}
	return nil
}

// GetRPCEndpoint returns the RPC endpoint for the configured network
func (c *SolanaConfig) GetRPCEndpoint() string {
	if c.RPC != "" {
		return c.RPC
	}

	switch c.Network {
	case "mainnet", "mainnet-beta":
		return "https://api.mainnet-beta.solana.com"
	case "testnet":
		return "https://api.testnet.solana.com"
	case "localnet", "localhost":
		return "http://localhost:8899"
	default:
		return "https://api.devnet.solana.com"
	}
}
