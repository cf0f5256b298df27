package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"collend/native/oracle"
)

// OracleSection carries the aggregation-engine thresholds in file-friendly
// units. Durations are expressed in seconds; percentages in whole percent.
type OracleSection struct {
	FreshnessSeconds        uint64 `toml:"FreshnessSeconds"`
	VolatilityWindowSeconds uint64 `toml:"VolatilityWindowSeconds"`
	VolatilityPercent       uint64 `toml:"VolatilityPercent"`
	CircuitBreakerPercent   uint64 `toml:"CircuitBreakerPercent"`
}

type Config struct {
	RPCAddress    string        `toml:"RPCAddress"`
	DataDir       string        `toml:"DataDir"`
	EthRPCURL     string        `toml:"EthRPCURL"`
	Env           string        `toml:"Env"`
	LogLevel      string        `toml:"LogLevel"`
	AssetManifest string        `toml:"AssetManifest"`
	Oracle        OracleSection `toml:"Oracle"`
}

// Load reads the configuration at path, creating a default file when none
// exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.normalise()

	if err := cfg.OracleConfig().Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	return cfg, nil
}

func (c *Config) normalise() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8080"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./collend-data"
	}
	if strings.TrimSpace(c.Env) == "" {
		c.Env = "local"
	}
	defaults := oracle.DefaultConfig()
	if c.Oracle.FreshnessSeconds == 0 {
		c.Oracle.FreshnessSeconds = uint64(defaults.FreshnessThreshold / time.Second)
	}
	if c.Oracle.VolatilityWindowSeconds == 0 {
		c.Oracle.VolatilityWindowSeconds = uint64(defaults.VolatilityWindow / time.Second)
	}
	if c.Oracle.VolatilityPercent == 0 {
		c.Oracle.VolatilityPercent = defaults.VolatilityPercent
	}
	if c.Oracle.CircuitBreakerPercent == 0 {
		c.Oracle.CircuitBreakerPercent = defaults.CircuitBreakerPercent
	}
}

// OracleConfig converts the file section into the engine's native config.
func (c *Config) OracleConfig() oracle.Config {
	return oracle.Config{
		FreshnessThreshold:    time.Duration(c.Oracle.FreshnessSeconds) * time.Second,
		VolatilityWindow:      time.Duration(c.Oracle.VolatilityWindowSeconds) * time.Second,
		VolatilityPercent:     c.Oracle.VolatilityPercent,
		CircuitBreakerPercent: c.Oracle.CircuitBreakerPercent,
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress: ":8080",
		DataDir:    "./collend-data",
		Env:        "local",
		LogLevel:   "info",
	}
	cfg.normalise()

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
