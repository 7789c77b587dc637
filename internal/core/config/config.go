package config

import (
	"time"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Subgraph SubgraphConfig `yaml:"subgraph"`
	Chain    ChainConfig    `yaml:"chain"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// SubgraphConfig holds the indexer endpoint settings.
type SubgraphConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`  // bearer auth, optional
	Schema  string        `yaml:"schema"` // "studio" or "denormalized"
	Timeout time.Duration `yaml:"timeout"`
}

// ChainConfig holds settings for the blockchain connection.
type ChainConfig struct {
	RPCURL         string `yaml:"rpc_url"`
	FallbackRPCURL string `yaml:"fallback_rpc_url"`
	ChainID        int64  `yaml:"chain_id"`
	Contract       string `yaml:"contract"`
	ExplorerTxURL  string `yaml:"explorer_tx_url"` // tx hash appended
	PrivateKey     string `yaml:"private_key"`     // hex, usually ${DASHBOARD_PRIVATE_KEY}
	ChainlinkFeed  string `yaml:"chainlink_feed"`  // ETH/USD aggregator address
	ScanWindow     uint64 `yaml:"scan_window"`     // blocks scanned on event fallback
}

// OracleConfig holds price-source settings for the cross-rate poller.
type OracleConfig struct {
	Interval      time.Duration `yaml:"interval"`
	CoingeckoURL  string        `yaml:"coingecko_url"`
	FxPrimaryURL  string        `yaml:"fx_primary_url"`
	FxFallbackURL string        `yaml:"fx_fallback_url"`
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// DatabaseConfig holds PostgreSQL connection configuration. An empty URL
// disables the archive.
type DatabaseConfig struct {
	URL       string        `yaml:"url"`
	MaxConns  int           `yaml:"max_conns"`
	MinConns  int           `yaml:"min_conns"`
	Retention time.Duration `yaml:"retention"` // 0 keeps archived rows forever
}
