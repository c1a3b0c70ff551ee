package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PoolConfig is the static reference data of one AMM pool. Every address is
// base58. The client never mutates it.
type PoolConfig struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	AmmAuthority string `yaml:"amm_authority"`
	OpenOrders   string `yaml:"open_orders"`
	TargetOrders string `yaml:"target_orders"`
	CoinVault    string `yaml:"coin_vault"`
	PcVault      string `yaml:"pc_vault"`
	CoinMint     string `yaml:"coin_mint"`
	PcMint       string `yaml:"pc_mint"`
	CoinDecimals uint8  `yaml:"coin_decimals"`
	PcDecimals   uint8  `yaml:"pc_decimals"`

	SerumProgram     string `yaml:"serum_program"`
	SerumMarket      string `yaml:"serum_market"`
	SerumBids        string `yaml:"serum_bids"`
	SerumAsks        string `yaml:"serum_asks"`
	SerumEventQueue  string `yaml:"serum_event_queue"`
	SerumCoinVault   string `yaml:"serum_coin_vault"`
	SerumPcVault     string `yaml:"serum_pc_vault"`
	SerumVaultSigner string `yaml:"serum_vault_signer"`
}

type poolsDocument struct {
	Pools []PoolConfig `yaml:"pools"`
}

// LoadPools reads the pool reference file at path.
func LoadPools(path string) ([]PoolConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pools file: %w", err)
	}
	return ParsePools(data)
}

// ParsePools decodes a YAML pools document and rejects duplicate ids.
func ParsePools(data []byte) ([]PoolConfig, error) {
	var doc poolsDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse pools file: %w", err)
	}

	seen := make(map[string]struct{}, len(doc.Pools))
	for i, p := range doc.Pools {
		if p.ID == "" {
			return nil, fmt.Errorf("pool %d: missing id", i)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("pool %s: duplicate id", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return doc.Pools, nil
}
