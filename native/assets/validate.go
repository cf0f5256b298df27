package assets

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// validateAssetConfig checks every field invariant a registry write must
// satisfy. The order mirrors the write path: cheap encoding checks first,
// threshold relations next, oracle wiring last. A nil return means the config
// may be stored as-is.
func validateAssetConfig(asset common.Address, cfg *AssetConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: config required", ErrInvalidParameter)
	}
	if !cfg.Active.Valid() {
		return fmt.Errorf("%w: active must be 0 or 1, got %d", ErrInvalidParameter, cfg.Active)
	}
	if cfg.Decimals < 1 || cfg.Decimals > 18 {
		return fmt.Errorf("%w: decimals must be within [1,18], got %d", ErrInvalidParameter, cfg.Decimals)
	}
	if !cfg.Round.Active.Valid() {
		return fmt.Errorf("%w: round oracle active must be 0 or 1, got %d", ErrInvalidParameter, cfg.Round.Active)
	}
	if cfg.Round.Active.Bool() && cfg.Round.Source == (common.Address{}) {
		return fmt.Errorf("%w: round oracle source", ErrZeroAddress)
	}
	if !cfg.Twap.Active.Valid() {
		return fmt.Errorf("%w: twap active must be 0 or 1, got %d", ErrInvalidParameter, cfg.Twap.Active)
	}
	if cfg.Twap.Active.Bool() {
		if cfg.Twap.Pool == (common.Address{}) {
			return fmt.Errorf("%w: twap pool", ErrZeroAddress)
		}
		if err := validateTwapWindow(cfg.Twap.WindowSeconds); err != nil {
			return err
		}
	}
	if cfg.LiquidationThreshold > MaxLiquidationThreshold {
		return fmt.Errorf("%w: %d exceeds %d", ErrInvalidLiquidationThreshold,
			cfg.LiquidationThreshold, MaxLiquidationThreshold)
	}
	if cfg.LiquidationThreshold < ThresholdGap || cfg.BorrowThreshold > cfg.LiquidationThreshold-ThresholdGap {
		return fmt.Errorf("%w: borrow threshold %d must not exceed liquidation threshold %d minus %d",
			ErrInvalidBorrowThreshold, cfg.BorrowThreshold, cfg.LiquidationThreshold, ThresholdGap)
	}
	if cfg.MaxSupplyThreshold == nil || cfg.MaxSupplyThreshold.Sign() <= 0 {
		return fmt.Errorf("%w: max supply threshold must be positive", ErrInvalidParameter)
	}
	if !cfg.Tier.Valid() {
		return fmt.Errorf("%w: unknown tier %d", ErrInvalidParameter, cfg.Tier)
	}
	if cfg.Tier == TierIsolated && (cfg.IsolationDebtCap == nil || cfg.IsolationDebtCap.Sign() <= 0) {
		return fmt.Errorf("%w: isolation debt cap must be positive for ISOLATED tier", ErrInvalidParameter)
	}
	if !cfg.PrimaryOracle.Valid() {
		return fmt.Errorf("%w: unknown primary oracle type %d", ErrInvalidParameter, cfg.PrimaryOracle)
	}
	if actual := cfg.ActiveOracleCount(); actual < int(cfg.MinimumOracles) {
		return &NotEnoughOraclesError{Asset: asset, Required: int(cfg.MinimumOracles), Actual: actual}
	}
	if !cfg.OracleActive(cfg.PrimaryOracle) {
		return fmt.Errorf("%w: primary %s", ErrOracleNotActive, cfg.PrimaryOracle)
	}
	return nil
}

func validateTwapWindow(window uint64) error {
	if window < MinTwapWindow || window > MaxTwapWindow {
		return fmt.Errorf("%w: twap window %ds outside [%d,%d]",
			ErrInvalidParameter, window, MinTwapWindow, MaxTwapWindow)
	}
	return nil
}
