package oracle

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// tickRatioPrec is the big.Float mantissa precision used for the
// 1.0001^tick expansion. 192 bits keeps the relative error far below the
// 6-decimal output resolution across the full tick domain.
const tickRatioPrec = 192

// readTwapPrice samples the pool's cumulative ticks at the window edge and at
// now, converts the average tick over the window to a price ratio and
// normalizes it to PriceDecimals using both token precisions.
//
// A zero cumulative-tick delta is ambiguous in the source data and is treated
// as a hard failure, never as "price unchanged". Pool observation failures
// propagate; there is no fallback to another source at this layer.
func (e *Engine) readTwapPrice(ctx context.Context, pool TwapPool, asset common.Address, windowSeconds uint64) (*big.Int, error) {
	if windowSeconds == 0 {
		return nil, fmt.Errorf("%w: twap window not set", ErrOracleNotConfigured)
	}
	cumulatives, err := pool.Observe(ctx, []uint32{uint32(windowSeconds), 0})
	if err != nil {
		return nil, fmt.Errorf("observe pool: %w", err)
	}
	if len(cumulatives) != 2 || cumulatives[0] == nil || cumulatives[1] == nil {
		return nil, fmt.Errorf("observe pool: expected 2 cumulative ticks, got %d", len(cumulatives))
	}

	delta := new(big.Int).Sub(cumulatives[1], cumulatives[0])
	if delta.Sign() == 0 {
		return nil, ErrNoTickMovement
	}
	// Floor division matches the pool's own arithmetic for negative deltas.
	averageTick := new(big.Int).Div(delta, new(big.Int).SetUint64(windowSeconds))

	tokens, err := pool.Tokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve pool tokens: %w", err)
	}

	ratio := tickRatio(averageTick.Int64())

	// The tick ratio is token1 raw units per token0 raw unit. Orient it so the
	// asset is the base, then shift by the decimal difference to obtain a
	// human-scale quote price.
	var decimalShift int
	switch asset {
	case tokens.Token0:
		decimalShift = int(tokens.Decimals0) - int(tokens.Decimals1)
	case tokens.Token1:
		ratio = new(big.Float).SetPrec(tickRatioPrec).Quo(big.NewFloat(1), ratio)
		decimalShift = int(tokens.Decimals1) - int(tokens.Decimals0)
	default:
		return nil, fmt.Errorf("%w: asset %s not a pool leg", ErrOracleNotConfigured, asset.Hex())
	}

	price := new(big.Float).SetPrec(tickRatioPrec).Set(ratio)
	shift := decimalShift + PriceDecimals
	if shift > 0 {
		price.Mul(price, new(big.Float).SetInt(pow10(shift)))
	} else if shift < 0 {
		price.Quo(price, new(big.Float).SetInt(pow10(-shift)))
	}

	out, _ := price.Int(nil)
	if out == nil || out.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	return out, nil
}

// tickRatio computes 1.0001^tick by exponentiation by squaring.
func tickRatio(tick int64) *big.Float {
	base := new(big.Float).SetPrec(tickRatioPrec).Quo(
		new(big.Float).SetInt64(10001), new(big.Float).SetInt64(10000))

	exponent := tick
	if exponent < 0 {
		exponent = -exponent
	}

	result := new(big.Float).SetPrec(tickRatioPrec).SetInt64(1)
	factor := base
	for exponent > 0 {
		if exponent&1 == 1 {
			result.Mul(result, factor)
		}
		factor = new(big.Float).SetPrec(tickRatioPrec).Mul(factor, factor)
		exponent >>= 1
	}

	if tick < 0 {
		return new(big.Float).SetPrec(tickRatioPrec).Quo(big.NewFloat(1), result)
	}
	return result
}
