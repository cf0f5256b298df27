package assets

import (
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "collend/native/common"
)

const moduleName = "assets"

// registryState abstracts the persistence layer holding asset configs, the
// ordered listing and the tier rate table.
type registryState interface {
	GetAsset(asset common.Address) (*AssetConfig, error)
	PutAsset(asset common.Address, cfg *AssetConfig) error
	ListAssets() ([]common.Address, error)
	AppendAsset(asset common.Address) error
	GetTierRates(tier Tier) (*TierRates, error)
	PutTierRates(tier Tier, rates TierRates) error
}

// PoolDirectory resolves the two token legs of a Uniswap-V3-style pool so the
// registry can verify an asset actually trades in the pool it is wired to.
type PoolDirectory interface {
	PoolTokens(pool common.Address) (token0, token1 common.Address, err error)
}

// ReserveFeedProvisioner creates the proof-of-reserve feed handle for a newly
// listed asset. Provisioning happens exactly once, on first listing.
type ReserveFeedProvisioner interface {
	ProvisionReserveFeed(asset common.Address) error
}

// Emitter receives registry lifecycle notifications. Implementations must be
// cheap; they run inside the registry's critical section.
type Emitter interface {
	AssetListed(asset common.Address)
	AssetUpdated(asset common.Address)
	AssetTierUpdated(asset common.Address, tier Tier)
}

// Registry is the single source of truth for per-asset configuration. Every
// mutation validates the full candidate entry before anything is stored, so a
// failing write leaves the previous state untouched.
type Registry struct {
	mu       sync.Mutex
	state    registryState
	pools    PoolDirectory
	reserves ReserveFeedProvisioner
	emitter  Emitter
	pauses   nativecommon.PauseView
	logger   *slog.Logger
}

func NewRegistry() *Registry {
	return &Registry{logger: slog.Default()}
}

// SetState wires the registry to the external persistence layer.
func (r *Registry) SetState(state registryState) { r.state = state }

func (r *Registry) SetPoolDirectory(pools PoolDirectory) {
	if r == nil {
		return
	}
	r.pools = pools
}

func (r *Registry) SetReserveProvisioner(p ReserveFeedProvisioner) {
	if r == nil {
		return
	}
	r.reserves = p
}

func (r *Registry) SetEmitter(e Emitter) {
	if r == nil {
		return
	}
	r.emitter = e
}

func (r *Registry) SetPauses(p nativecommon.PauseView) {
	if r == nil {
		return
	}
	r.pauses = p
}

func (r *Registry) SetLogger(logger *slog.Logger) {
	if r == nil || logger == nil {
		return
	}
	r.logger = logger
}

// UpdateAssetConfig validates and stores the full configuration for an asset.
// The first successful write for an asset appends it to the ordered listing
// and provisions its proof-of-reserve feed.
func (r *Registry) UpdateAssetConfig(asset common.Address, cfg *AssetConfig) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return err
	}
	if asset == (common.Address{}) {
		return fmt.Errorf("%w: asset", ErrZeroAddress)
	}
	if err := validateAssetConfig(asset, cfg); err != nil {
		return err
	}
	if cfg.Twap.Active.Bool() {
		if err := r.checkPoolMembership(asset, cfg.Twap.Pool); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.state.GetAsset(asset)
	if err != nil {
		return err
	}

	// Provision the proof-of-reserve feed before anything is stored so a
	// provisioning failure rejects the listing without leaving a partial
	// registry entry behind.
	if existing == nil && r.reserves != nil {
		if err := r.reserves.ProvisionReserveFeed(asset); err != nil {
			return fmt.Errorf("provision reserve feed: %w", err)
		}
	}

	if err := r.state.PutAsset(asset, cfg.Clone()); err != nil {
		return err
	}

	if existing == nil {
		if err := r.state.AppendAsset(asset); err != nil {
			return err
		}
		r.logger.Info("asset listed", "asset", asset.Hex(), "tier", cfg.Tier.String())
		if r.emitter != nil {
			r.emitter.AssetListed(asset)
		}
		return nil
	}

	r.logger.Info("asset config updated", "asset", asset.Hex())
	if r.emitter != nil {
		r.emitter.AssetUpdated(asset)
	}
	return nil
}

// UpdateRoundOracle mutates only the round-oracle wiring of a listed asset.
// The merged configuration is re-validated in full before it is stored.
func (r *Registry) UpdateRoundOracle(asset, source common.Address, active Flag) error {
	return r.mutateListed(asset, func(cfg *AssetConfig) error {
		cfg.Round.Source = source
		cfg.Round.Active = active
		return nil
	})
}

// UpdateUniswapOracle mutates only the TWAP wiring of a listed asset. The
// window bounds and pool membership are checked before the merged config is
// re-validated against the minimum-oracle and primary-active invariants.
func (r *Registry) UpdateUniswapOracle(asset, pool common.Address, windowSeconds uint64, active Flag) error {
	return r.mutateListed(asset, func(cfg *AssetConfig) error {
		if active.Bool() {
			if err := validateTwapWindow(windowSeconds); err != nil {
				return err
			}
			if err := r.checkPoolMembership(asset, pool); err != nil {
				return err
			}
		}
		cfg.Twap.Pool = pool
		cfg.Twap.WindowSeconds = windowSeconds
		cfg.Twap.Active = active
		return nil
	})
}

// UpdateAssetTier reassigns the asset's risk tier. The call notifies the
// emitter even when the tier is unchanged.
func (r *Registry) UpdateAssetTier(asset common.Address, tier Tier) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return err
	}
	if !tier.Valid() {
		return fmt.Errorf("%w: unknown tier %d", ErrInvalidParameter, tier)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, err := r.state.GetAsset(asset)
	if err != nil {
		return err
	}
	if cfg == nil {
		return ErrAssetNotListed
	}
	cfg.Tier = tier
	if err := validateAssetConfig(asset, cfg); err != nil {
		return err
	}
	if err := r.state.PutAsset(asset, cfg); err != nil {
		return err
	}
	if r.emitter != nil {
		r.emitter.AssetTierUpdated(asset, tier)
	}
	return nil
}

// GetAssetInfo returns a copy of the stored configuration.
func (r *Registry) GetAssetInfo(asset common.Address) (*AssetConfig, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, err := r.state.GetAsset(asset)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrAssetNotListed
	}
	return cfg.Clone(), nil
}

// IsAssetValid reports whether the asset is listed and marked active.
func (r *Registry) IsAssetValid(asset common.Address) bool {
	cfg, err := r.GetAssetInfo(asset)
	if err != nil {
		return false
	}
	return cfg.Active.Bool()
}

func (r *Registry) GetAssetTier(asset common.Address) (Tier, error) {
	cfg, err := r.GetAssetInfo(asset)
	if err != nil {
		return 0, err
	}
	return cfg.Tier, nil
}

func (r *Registry) GetIsolationDebtCap(asset common.Address) (*big.Int, error) {
	cfg, err := r.GetAssetInfo(asset)
	if err != nil {
		return nil, err
	}
	if cfg.IsolationDebtCap == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(cfg.IsolationDebtCap), nil
}

// ListAssets returns every listed asset in insertion order.
func (r *Registry) ListAssets() ([]common.Address, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.ListAssets()
}

// SetTierRates validates and stores the jump rate and liquidation fee for a
// tier.
func (r *Registry) SetTierRates(tier Tier, rates TierRates) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return err
	}
	if !tier.Valid() {
		return fmt.Errorf("%w: unknown tier %d", ErrInvalidParameter, tier)
	}
	if err := validateTierRates(rates); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.PutTierRates(tier, rates)
}

// TierRates returns the configured rates for a tier, falling back to the
// built-in defaults when the table has never been written.
func (r *Registry) TierRates(tier Tier) (TierRates, error) {
	if r == nil || r.state == nil {
		return TierRates{}, errNilState
	}
	if !tier.Valid() {
		return TierRates{}, fmt.Errorf("%w: unknown tier %d", ErrInvalidParameter, tier)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rates, err := r.state.GetTierRates(tier)
	if err != nil {
		return TierRates{}, err
	}
	if rates == nil {
		return defaultTierRates(tier), nil
	}
	return *rates, nil
}

func (r *Registry) mutateListed(asset common.Address, mutate func(cfg *AssetConfig) error) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, err := r.state.GetAsset(asset)
	if err != nil {
		return err
	}
	if cfg == nil {
		return ErrAssetNotListed
	}
	if err := mutate(cfg); err != nil {
		return err
	}
	if err := validateAssetConfig(asset, cfg); err != nil {
		return err
	}
	if err := r.state.PutAsset(asset, cfg); err != nil {
		return err
	}
	r.logger.Info("asset oracle wiring updated", "asset", asset.Hex())
	if r.emitter != nil {
		r.emitter.AssetUpdated(asset)
	}
	return nil
}

func (r *Registry) checkPoolMembership(asset, pool common.Address) error {
	if r.pools == nil {
		return nil
	}
	token0, token1, err := r.pools.PoolTokens(pool)
	if err != nil {
		return fmt.Errorf("resolve pool tokens: %w", err)
	}
	if asset != token0 && asset != token1 {
		return fmt.Errorf("%w: asset %s not in pool %s", ErrAssetNotInPool, asset.Hex(), pool.Hex())
	}
	return nil
}
