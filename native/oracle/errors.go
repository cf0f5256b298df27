package oracle

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	errNilState = errors.New("oracle engine: state not configured")
	errNilFeeds = errors.New("oracle engine: feed provider not configured")

	ErrInvalidPrice        = errors.New("oracle engine: invalid price")
	ErrStalePrice          = errors.New("oracle engine: stale round")
	ErrTimeout             = errors.New("oracle engine: price data too old")
	ErrPriceVolatility     = errors.New("oracle engine: excessive round-over-round volatility")
	ErrOracleNotConfigured = errors.New("oracle engine: requested oracle type not configured")
	ErrCircuitBreakerOpen  = errors.New("oracle engine: circuit breaker active")
	ErrNoActiveOracles     = errors.New("oracle engine: no active oracle sources")
	ErrNoTickMovement      = errors.New("oracle engine: twap tick delta is zero")
	ErrInvalidThreshold    = errors.New("oracle engine: threshold out of bounds")
)

// VolatilityError reports the observed round-over-round percentage move that
// tripped the volatility guard. It unwraps to ErrPriceVolatility.
type VolatilityError struct {
	Percent *big.Int
}

func (e *VolatilityError) Error() string {
	return fmt.Sprintf("oracle engine: round-over-round volatility %s%% exceeds limit", e.Percent)
}

func (e *VolatilityError) Unwrap() error { return ErrPriceVolatility }
