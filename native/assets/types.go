package assets

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Flag is the {0,1} activation encoding used across asset configuration.
// Values other than 0 or 1 are rejected at validation time so that a
// mistyped field can never silently enable or disable an oracle.
type Flag uint8

const (
	FlagInactive Flag = 0
	FlagActive   Flag = 1
)

func (f Flag) Valid() bool { return f == FlagInactive || f == FlagActive }

func (f Flag) Bool() bool { return f == FlagActive }

// Tier classifies the risk profile of a collateral asset.
type Tier uint8

const (
	TierStable Tier = iota
	TierCrossA
	TierCrossB
	TierIsolated
)

func (t Tier) Valid() bool { return t <= TierIsolated }

func (t Tier) String() string {
	switch t {
	case TierStable:
		return "STABLE"
	case TierCrossA:
		return "CROSS_A"
	case TierCrossB:
		return "CROSS_B"
	case TierIsolated:
		return "ISOLATED"
	default:
		return fmt.Sprintf("TIER(%d)", uint8(t))
	}
}

// ParseTier resolves the canonical tier name used by manifests and RPC params.
func ParseTier(name string) (Tier, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "STABLE":
		return TierStable, nil
	case "CROSS_A":
		return TierCrossA, nil
	case "CROSS_B":
		return TierCrossB, nil
	case "ISOLATED":
		return TierIsolated, nil
	default:
		return 0, fmt.Errorf("%w: unknown tier %q", ErrInvalidParameter, name)
	}
}

// OracleType tags the price source variants an asset can be wired to.
type OracleType uint8

const (
	RoundOracle OracleType = iota
	TwapOracle
)

func (t OracleType) Valid() bool { return t == RoundOracle || t == TwapOracle }

func (t OracleType) String() string {
	switch t {
	case RoundOracle:
		return "ROUND_ORACLE"
	case TwapOracle:
		return "TWAP_ORACLE"
	default:
		return fmt.Sprintf("ORACLE(%d)", uint8(t))
	}
}

func ParseOracleType(name string) (OracleType, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "ROUND_ORACLE", "ROUND":
		return RoundOracle, nil
	case "TWAP_ORACLE", "TWAP":
		return TwapOracle, nil
	default:
		return 0, fmt.Errorf("%w: unknown oracle type %q", ErrInvalidParameter, name)
	}
}

// RoundOracleConfig wires an asset to a round-based price feed.
type RoundOracleConfig struct {
	Source common.Address `json:"source"`
	Active Flag           `json:"active"`
}

// TwapConfig wires an asset to a Uniswap-V3-style pool sampled over a
// time-weighted window. WindowSeconds must stay within [MinTwapWindow,
// MaxTwapWindow].
type TwapConfig struct {
	Pool          common.Address `json:"pool"`
	WindowSeconds uint64         `json:"windowSeconds"`
	Active        Flag           `json:"active"`
}

// Twap window bounds in seconds.
const (
	MinTwapWindow = 900
	MaxTwapWindow = 1800
)

// Threshold bounds on the 0-1000 scale shared by borrow and liquidation
// thresholds. A borrow threshold must sit at least ThresholdGap below the
// liquidation threshold.
const (
	MaxLiquidationThreshold = 990
	ThresholdGap            = 10
)

// AssetConfig is the full per-asset registry entry. Amounts are denominated
// in the asset's native precision.
type AssetConfig struct {
	Active               Flag              `json:"active"`
	Decimals             uint8             `json:"decimals"`
	BorrowThreshold      uint64            `json:"borrowThreshold"`
	LiquidationThreshold uint64            `json:"liquidationThreshold"`
	MaxSupplyThreshold   *big.Int          `json:"maxSupplyThreshold"`
	IsolationDebtCap     *big.Int          `json:"isolationDebtCap"`
	MinimumOracles       uint8             `json:"minimumOracles"`
	PrimaryOracle        OracleType        `json:"primaryOracle"`
	Tier                 Tier              `json:"tier"`
	Round                RoundOracleConfig `json:"round"`
	Twap                 TwapConfig        `json:"twap"`
}

// Clone returns a deep copy so callers can never mutate stored registry state.
func (c *AssetConfig) Clone() *AssetConfig {
	if c == nil {
		return nil
	}
	clone := *c
	if c.MaxSupplyThreshold != nil {
		clone.MaxSupplyThreshold = new(big.Int).Set(c.MaxSupplyThreshold)
	}
	if c.IsolationDebtCap != nil {
		clone.IsolationDebtCap = new(big.Int).Set(c.IsolationDebtCap)
	}
	return &clone
}

// ActiveOracleCount reports how many price sources are currently enabled.
func (c *AssetConfig) ActiveOracleCount() int {
	if c == nil {
		return 0
	}
	count := 0
	if c.Round.Active.Bool() {
		count++
	}
	if c.Twap.Active.Bool() {
		count++
	}
	return count
}

// OracleActive reports whether the named source type is enabled.
func (c *AssetConfig) OracleActive(t OracleType) bool {
	if c == nil {
		return false
	}
	switch t {
	case RoundOracle:
		return c.Round.Active.Bool()
	case TwapOracle:
		return c.Twap.Active.Bool()
	default:
		return false
	}
}
