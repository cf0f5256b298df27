package assets

import "fmt"

// Tier rates use a 1e6 fixed-point scale: 250_000 represents 0.25.
const (
	RateScale         = 1_000_000
	MaxJumpRate       = 250_000
	MaxLiquidationFee = 100_000
)

// TierRates holds the per-tier borrow jump rate and liquidation fee.
type TierRates struct {
	JumpRate       uint64 `json:"jumpRate"`
	LiquidationFee uint64 `json:"liquidationFee"`
}

func validateTierRates(rates TierRates) error {
	if rates.JumpRate > MaxJumpRate {
		return fmt.Errorf("%w: %d exceeds %d", ErrRateTooHigh, rates.JumpRate, MaxJumpRate)
	}
	if rates.LiquidationFee > MaxLiquidationFee {
		return fmt.Errorf("%w: %d exceeds %d", ErrFeeTooHigh, rates.LiquidationFee, MaxLiquidationFee)
	}
	return nil
}

// defaultTierRates seeds the table on first boot. Stable collateral carries
// the lowest jump rate, isolated the highest.
func defaultTierRates(tier Tier) TierRates {
	switch tier {
	case TierStable:
		return TierRates{JumpRate: 40_000, LiquidationFee: 10_000}
	case TierCrossA:
		return TierRates{JumpRate: 80_000, LiquidationFee: 25_000}
	case TierCrossB:
		return TierRates{JumpRate: 150_000, LiquidationFee: 50_000}
	case TierIsolated:
		return TierRates{JumpRate: 250_000, LiquidationFee: 100_000}
	default:
		return TierRates{}
	}
}
