package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"collend/native/assets"
)

// Manifest bootstraps the asset registry from a YAML file at startup. Each
// entry maps onto a full registry configuration; amounts are decimal strings
// in the asset's native precision.
type Manifest struct {
	Assets []ManifestAsset `yaml:"assets"`
}

type ManifestAsset struct {
	Address              string        `yaml:"address"`
	Active               bool          `yaml:"active"`
	Decimals             uint8         `yaml:"decimals"`
	Tier                 string        `yaml:"tier"`
	BorrowThreshold      uint64        `yaml:"borrowThreshold"`
	LiquidationThreshold uint64        `yaml:"liquidationThreshold"`
	MaxSupply            string        `yaml:"maxSupply"`
	IsolationDebtCap     string        `yaml:"isolationDebtCap"`
	MinimumOracles       uint8         `yaml:"minimumOracles"`
	PrimaryOracle        string        `yaml:"primaryOracle"`
	Round                ManifestRound `yaml:"round"`
	Twap                 ManifestTwap  `yaml:"twap"`
}

type ManifestRound struct {
	Source string `yaml:"source"`
	Active bool   `yaml:"active"`
}

type ManifestTwap struct {
	Pool          string `yaml:"pool"`
	WindowSeconds uint64 `yaml:"windowSeconds"`
	Active        bool   `yaml:"active"`
}

// LoadManifest parses the asset manifest at path. An empty path yields an
// empty manifest so operators can run without bootstrap assets.
func LoadManifest(path string) (*Manifest, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return &Manifest{}, nil
	}
	raw, err := os.ReadFile(trimmed)
	if err != nil {
		return nil, fmt.Errorf("read asset manifest: %w", err)
	}
	manifest := &Manifest{}
	if err := yaml.Unmarshal(raw, manifest); err != nil {
		return nil, fmt.Errorf("parse asset manifest %s: %w", trimmed, err)
	}
	return manifest, nil
}

// AssetConfig converts a manifest entry into the registry's native form. The
// registry re-validates the result on listing, so this only rejects values
// that cannot be represented at all.
func (m ManifestAsset) AssetConfig() (common.Address, *assets.AssetConfig, error) {
	addr, err := parseAddress(m.Address)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("asset address: %w", err)
	}
	tier, err := assets.ParseTier(m.Tier)
	if err != nil {
		return common.Address{}, nil, err
	}
	primary, err := assets.ParseOracleType(m.PrimaryOracle)
	if err != nil {
		return common.Address{}, nil, err
	}
	maxSupply, err := parseAmount(m.MaxSupply)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("maxSupply: %w", err)
	}
	isolationCap, err := parseAmount(m.IsolationDebtCap)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("isolationDebtCap: %w", err)
	}

	cfg := &assets.AssetConfig{
		Active:               flagOf(m.Active),
		Decimals:             m.Decimals,
		BorrowThreshold:      m.BorrowThreshold,
		LiquidationThreshold: m.LiquidationThreshold,
		MaxSupplyThreshold:   maxSupply,
		IsolationDebtCap:     isolationCap,
		MinimumOracles:       m.MinimumOracles,
		PrimaryOracle:        primary,
		Tier:                 tier,
		Round:                assets.RoundOracleConfig{Active: flagOf(m.Round.Active)},
		Twap: assets.TwapConfig{
			WindowSeconds: m.Twap.WindowSeconds,
			Active:        flagOf(m.Twap.Active),
		},
	}
	if strings.TrimSpace(m.Round.Source) != "" {
		source, err := parseAddress(m.Round.Source)
		if err != nil {
			return common.Address{}, nil, fmt.Errorf("round source: %w", err)
		}
		cfg.Round.Source = source
	}
	if strings.TrimSpace(m.Twap.Pool) != "" {
		pool, err := parseAddress(m.Twap.Pool)
		if err != nil {
			return common.Address{}, nil, fmt.Errorf("twap pool: %w", err)
		}
		cfg.Twap.Pool = pool
	}
	return addr, cfg, nil
}

func flagOf(active bool) assets.Flag {
	if active {
		return assets.FlagActive
	}
	return assets.FlagInactive
}

func parseAddress(value string) (common.Address, error) {
	trimmed := strings.TrimSpace(value)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid address %q", value)
	}
	return common.HexToAddress(trimmed), nil
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}
