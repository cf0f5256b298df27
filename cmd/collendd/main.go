package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"collend/config"
	"collend/feeds"
	"collend/feeds/chainlink"
	"collend/feeds/reserve"
	"collend/native/assets"
	"collend/native/oracle"
	"collend/native/upgrade"
	"collend/observability"
	"collend/observability/logging"
	"collend/rpc"
	"collend/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	memoryFlag := flag.Bool("memory", false, "DEV ONLY: run with an in-memory store instead of LevelDB")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("COLLEND_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if env == "" {
		env = cfg.Env
	}
	logger := logging.Setup("collendd", env, cfg.LogLevel)

	var db storage.Database
	if *memoryFlag {
		db = storage.NewMemDB()
	} else {
		leveldb, err := storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			panic(fmt.Sprintf("Failed to open database: %v", err))
		}
		db = leveldb
	}
	defer db.Close()

	emitter := observability.NewEventEmitter(logger)

	registry := assets.NewRegistry()
	registry.SetState(assets.NewStore(db))
	registry.SetReserveProvisioner(provisioner(db, logger))
	registry.SetEmitter(emitter)
	registry.SetLogger(logger)

	engine := oracle.NewEngine(registry, cfg.OracleConfig())
	engine.SetState(oracle.NewStore(db))
	engine.SetEmitter(emitter)
	engine.SetLogger(logger)

	if strings.TrimSpace(cfg.EthRPCURL) != "" {
		client, err := chainlink.Dial(cfg.EthRPCURL)
		if err != nil {
			logger.Error("Failed to connect to Ethereum RPC", slog.Any("error", err))
			os.Exit(1)
		}
		provider := feeds.NewProvider(client)
		engine.SetFeeds(provider)
		registry.SetPoolDirectory(provider)
	} else {
		logger.Warn("No Ethereum RPC endpoint configured; price reads will fail until one is set")
	}

	timelock := upgrade.NewTimelock()
	timelock.SetLogger(logger)

	if err := bootstrapAssets(cfg.AssetManifest, registry, logger); err != nil {
		logger.Error("Failed to bootstrap assets", slog.Any("error", err))
		os.Exit(1)
	}

	server := rpc.NewServer(registry, engine, timelock)
	server.SetLogger(logger)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func provisioner(db storage.Database, logger *slog.Logger) *reserve.Provisioner {
	p := reserve.NewProvisioner(db)
	p.SetLogger(logger)
	return p
}

// bootstrapAssets lists the manifest entries that are not in the registry
// yet. Already-listed assets are left untouched so operator edits made over
// RPC survive restarts.
func bootstrapAssets(path string, registry *assets.Registry, logger *slog.Logger) error {
	manifest, err := config.LoadManifest(path)
	if err != nil {
		return err
	}
	for _, entry := range manifest.Assets {
		addr, assetCfg, err := entry.AssetConfig()
		if err != nil {
			return fmt.Errorf("manifest entry %s: %w", entry.Address, err)
		}
		if registry.IsAssetValid(addr) {
			continue
		}
		if _, err := registry.GetAssetInfo(addr); err == nil {
			continue
		}
		if err := registry.UpdateAssetConfig(addr, assetCfg); err != nil {
			return fmt.Errorf("list %s: %w", addr.Hex(), err)
		}
		logger.Info("bootstrapped asset", "asset", addr.Hex(), "tier", assetCfg.Tier.String())
	}
	return nil
}
