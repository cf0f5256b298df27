package config

import (
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"collend/native/assets"
)

const manifestFixture = `assets:
  - address: "0x00000000000000000000000000000000000000A1"
    active: true
    decimals: 18
    tier: "CROSS_A"
    borrowThreshold: 750
    liquidationThreshold: 800
    maxSupply: "1000000000000000000000000"
    minimumOracles: 2
    primaryOracle: "ROUND"
    round:
      source: "0x00000000000000000000000000000000000000F1"
      active: true
    twap:
      pool: "0x00000000000000000000000000000000000000D1"
      windowSeconds: 900
      active: true
`

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets.yaml")
	if err := os.WriteFile(path, []byte(manifestFixture), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	manifest, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	if len(manifest.Assets) != 1 {
		t.Fatalf("expected 1 asset, got %d", len(manifest.Assets))
	}

	addr, cfg, err := manifest.Assets[0].AssetConfig()
	if err != nil {
		t.Fatalf("asset config: %v", err)
	}
	if !strings.EqualFold(addr.Hex(), "0x00000000000000000000000000000000000000A1") {
		t.Fatalf("unexpected asset address %s", addr.Hex())
	}
	if cfg.Active != assets.FlagActive || cfg.Decimals != 18 {
		t.Fatalf("base fields not carried: %+v", cfg)
	}
	if cfg.Tier != assets.TierCrossA {
		t.Fatalf("tier = %s, want CROSS_A", cfg.Tier)
	}
	if cfg.PrimaryOracle != assets.RoundOracle {
		t.Fatalf("primary oracle = %s, want ROUND_ORACLE", cfg.PrimaryOracle)
	}
	wantSupply := new(big.Int)
	wantSupply.SetString("1000000000000000000000000", 10)
	if cfg.MaxSupplyThreshold == nil || cfg.MaxSupplyThreshold.Cmp(wantSupply) != 0 {
		t.Fatalf("max supply = %v, want %s", cfg.MaxSupplyThreshold, wantSupply)
	}
	if cfg.IsolationDebtCap != nil {
		t.Fatalf("expected nil isolation cap, got %s", cfg.IsolationDebtCap)
	}
	if cfg.Round.Active != assets.FlagActive || cfg.Round.Source == (common.Address{}) {
		t.Fatalf("round oracle not carried: %+v", cfg.Round)
	}
	if cfg.Twap.WindowSeconds != 900 || cfg.Twap.Active != assets.FlagActive {
		t.Fatalf("twap oracle not carried: %+v", cfg.Twap)
	}
}

func TestLoadManifestEmptyPath(t *testing.T) {
	manifest, err := LoadManifest("  ")
	if err != nil {
		t.Fatalf("empty path: %v", err)
	}
	if len(manifest.Assets) != 0 {
		t.Fatalf("expected empty manifest, got %d assets", len(manifest.Assets))
	}
}

func TestLoadManifestMissingFile(t *testing.T) {
	if _, err := LoadManifest(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing manifest")
	}
}

func TestManifestAssetConfigRejections(t *testing.T) {
	valid := func() ManifestAsset {
		return ManifestAsset{
			Address:       "0x00000000000000000000000000000000000000A1",
			Tier:          "STABLE",
			PrimaryOracle: "ROUND",
		}
	}

	tests := []struct {
		name   string
		mutate func(*ManifestAsset)
	}{
		{"bad address", func(m *ManifestAsset) { m.Address = "not-an-address" }},
		{"bad tier", func(m *ManifestAsset) { m.Tier = "PLATINUM" }},
		{"bad primary oracle", func(m *ManifestAsset) { m.PrimaryOracle = "VWAP" }},
		{"bad max supply", func(m *ManifestAsset) { m.MaxSupply = "1.5e6" }},
		{"bad isolation cap", func(m *ManifestAsset) { m.IsolationDebtCap = "ten" }},
		{"bad round source", func(m *ManifestAsset) { m.Round.Source = "0x12" }},
		{"bad twap pool", func(m *ManifestAsset) { m.Twap.Pool = "0x12" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			entry := valid()
			tc.mutate(&entry)
			if _, _, err := entry.AssetConfig(); err == nil {
				t.Fatal("expected conversion error")
			}
		})
	}
}

func TestManifestAssetConfigInvalidTierError(t *testing.T) {
	entry := ManifestAsset{
		Address:       "0x00000000000000000000000000000000000000A1",
		Tier:          "PLATINUM",
		PrimaryOracle: "ROUND",
	}
	if _, _, err := entry.AssetConfig(); !errors.Is(err, assets.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
}
