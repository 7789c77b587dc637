package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Subgraph.Timeout == 0 {
		cfg.Subgraph.Timeout = 15 * time.Second
	}
	if cfg.Subgraph.Schema == "" {
		cfg.Subgraph.Schema = "studio"
	}
	if cfg.Chain.ScanWindow == 0 {
		cfg.Chain.ScanWindow = 20000
	}
	if cfg.Chain.ExplorerTxURL == "" {
		cfg.Chain.ExplorerTxURL = "https://etherscan.io/tx/"
	}
	if cfg.Oracle.Interval == 0 {
		cfg.Oracle.Interval = 10 * time.Second
	}
	if cfg.Oracle.CoingeckoURL == "" {
		cfg.Oracle.CoingeckoURL = "https://api.coingecko.com/api/v3/simple/price?ids=ethereum&vs_currencies=usd"
	}
	if cfg.Oracle.FxPrimaryURL == "" {
		cfg.Oracle.FxPrimaryURL = "https://api.exchangerate.host/latest?base=USD&symbols=ILS"
	}
	if cfg.Oracle.FxFallbackURL == "" {
		cfg.Oracle.FxFallbackURL = "https://open.er-api.com/v6/latest/USD"
	}

	return &cfg, nil
}
