// Package configs loads the indexer's two configuration layers: a YAML
// file holding the stable contract/token/template allow-lists, and the
// per-run CLI flags (bind address, db path, reindex/compact switches)
// layered on top of it by cmd/main. This mirrors the teacher's own
// split between a YAML-backed Config struct and its CLI entry point,
// generalized from a single-strategy bot's config to the indexer's
// allow-list-and-flags shape.
package configs

import (
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/althea-net/ambient-indexer/internal/ambient/pool"
)

// TemplateYAMLData is a single allow-listed pool template, keyed by
// pool_idx in the YAML document.
type TemplateYAMLData struct {
	FeeRatePips  uint16 `yaml:"fee_rate_pips"`
	ProtocolTake uint8  `yaml:"protocol_take"`
	TickSize     uint16 `yaml:"tick_size"`
	JitThreshold uint8  `yaml:"jit_threshold"`
	KnockoutBits uint8  `yaml:"knockout_bits"`
	OracleFlags  uint8  `yaml:"oracle_flags"`
}

// Config is the stable, version-controlled half of the indexer's
// configuration: everything that describes which chain, contracts,
// pools and tokens this deployment tracks.
type Config struct {
	RPC               string                      `yaml:"rpc"`
	DispatchContract  string                      `yaml:"dispatch_contract"`
	QueryContract     string                      `yaml:"query_contract"`
	MulticallContract string                      `yaml:"multicall_contract"`
	DefaultStart      uint64                      `yaml:"default_start_block"`
	AllowedTokens     []string                    `yaml:"allowed_tokens"`
	AllowedPools      []string                    `yaml:"allowed_pool_idx"`
	Templates         map[string]TemplateYAMLData `yaml:"templates"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("configs: read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("configs: parse config YAML: %w", err)
	}
	return &config, nil
}

// AllowedTokenSet returns the configured token allow-list as an address
// set, for wiring into scanner.AllowList.
func (c *Config) AllowedTokenSet() map[common.Address]bool {
	set := make(map[common.Address]bool, len(c.AllowedTokens))
	for _, t := range c.AllowedTokens {
		set[common.HexToAddress(t)] = true
	}
	return set
}

// AllowedPoolSet returns the configured pool_idx allow-list as a string
// set (matching how pool indices are stored as decimal strings), for
// wiring into scanner.AllowList.
func (c *Config) AllowedPoolSet() map[string]bool {
	set := make(map[string]bool, len(c.AllowedPools))
	for _, p := range c.AllowedPools {
		if n, ok := new(big.Int).SetString(p, 10); ok {
			set[n.String()] = true
		}
	}
	return set
}

// PoolTemplates converts the YAML template table into pool.Template
// records keyed by pool_idx, ready for a one-time store seed at startup.
func (c *Config) PoolTemplates() (map[string]pool.Template, error) {
	out := make(map[string]pool.Template, len(c.Templates))
	for idx, t := range c.Templates {
		if _, ok := new(big.Int).SetString(idx, 10); !ok {
			return nil, fmt.Errorf("configs: invalid pool_idx %q in templates", idx)
		}
		out[idx] = pool.Template{
			FeeRatePips:  t.FeeRatePips,
			ProtocolTake: t.ProtocolTake,
			TickSize:     t.TickSize,
			JitThreshold: t.JitThreshold,
			KnockoutBits: t.KnockoutBits,
			OracleFlags:  t.OracleFlags,
		}
	}
	return out, nil
}

// RuntimeFlags is the per-run half of the configuration, populated from
// CLI flags by cmd/main rather than the YAML file.
type RuntimeFlags struct {
	ConfigPath           string
	DBPath               string
	Bind                 string
	TLSCert              string
	TLSKey               string
	RPC                  string
	DispatchContract     string
	QueryContract        string
	MulticallContract    string
	Reindex              bool
	Compact              bool
	CompactAndHalt       bool
	AllowVersionMismatch bool
}

// ApplyOverrides layers non-empty CLI flag values on top of the YAML
// config, so a deployment can override the allow-listed contract set
// without editing the checked-in config file.
func (c *Config) ApplyOverrides(f RuntimeFlags) {
	if f.RPC != "" {
		c.RPC = f.RPC
	}
	if f.DispatchContract != "" {
		c.DispatchContract = f.DispatchContract
	}
	if f.QueryContract != "" {
		c.QueryContract = f.QueryContract
	}
	if f.MulticallContract != "" {
		c.MulticallContract = f.MulticallContract
	}
}
