package assets

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	errNilState = errors.New("asset registry: state not configured")

	ErrAssetNotListed              = errors.New("asset registry: asset not listed")
	ErrInvalidParameter            = errors.New("asset registry: invalid parameter")
	ErrInvalidLiquidationThreshold = errors.New("asset registry: invalid liquidation threshold")
	ErrInvalidBorrowThreshold      = errors.New("asset registry: invalid borrow threshold")
	ErrNotEnoughOracles            = errors.New("asset registry: not enough active oracles")
	ErrOracleNotActive             = errors.New("asset registry: primary oracle not active")
	ErrAssetNotInPool              = errors.New("asset registry: asset not in uniswap pool")
	ErrRateTooHigh                 = errors.New("asset registry: jump rate too high")
	ErrFeeTooHigh                  = errors.New("asset registry: liquidation fee too high")
	ErrZeroAddress                 = errors.New("asset registry: zero address not allowed")
)

// NotEnoughOraclesError carries the required and observed active-source counts
// alongside the asset that failed the minimum-oracle invariant. It unwraps to
// ErrNotEnoughOracles.
type NotEnoughOraclesError struct {
	Asset    common.Address
	Required int
	Actual   int
}

func (e *NotEnoughOraclesError) Error() string {
	return fmt.Sprintf("asset registry: asset %s requires %d active oracles, have %d",
		e.Asset.Hex(), e.Required, e.Actual)
}

func (e *NotEnoughOraclesError) Unwrap() error { return ErrNotEnoughOracles }
