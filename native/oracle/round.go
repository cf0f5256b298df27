package oracle

import (
	"context"
	"fmt"
	"math/big"
	"time"
)

// PriceDecimals is the fixed decimal precision of every price the engine
// returns, regardless of a source's native precision.
const PriceDecimals = 6

var (
	bigOne     = big.NewInt(1)
	bigHundred = big.NewInt(100)
)

// readRoundPrice validates the latest round of a feed and returns its answer
// normalized to PriceDecimals.
//
// Validation order: non-positive answers are always invalid; a round answered
// before it was started is stale; data older than the freshness threshold has
// timed out. The volatility guard only applies once the quote's age reaches
// the volatility window; a fresher quote is trusted even across a large
// move.
func (e *Engine) readRoundPrice(ctx context.Context, feed RoundFeed, now time.Time, cfg Config) (*big.Int, error) {
	latest, err := feed.LatestRoundData(ctx)
	if err != nil {
		return nil, fmt.Errorf("read latest round: %w", err)
	}
	if latest.Answer == nil || latest.Answer.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	if latest.AnsweredInRound == nil || latest.RoundID == nil ||
		latest.AnsweredInRound.Cmp(latest.RoundID) < 0 {
		return nil, ErrStalePrice
	}
	age := now.Sub(latest.UpdatedAt)
	if age > cfg.FreshnessThreshold {
		return nil, fmt.Errorf("%w: updated %s ago", ErrTimeout, age)
	}

	if age >= cfg.VolatilityWindow {
		if err := e.checkRoundVolatility(ctx, feed, latest, cfg.VolatilityPercent); err != nil {
			return nil, err
		}
	}

	decimals, err := feed.Decimals(ctx)
	if err != nil {
		return nil, fmt.Errorf("read feed decimals: %w", err)
	}
	return normalizePrice(latest.Answer, decimals), nil
}

// checkRoundVolatility fails when the move from the previous round meets or
// exceeds the configured percentage.
func (e *Engine) checkRoundVolatility(ctx context.Context, feed RoundFeed, latest RoundData, limitPercent uint64) error {
	previousID := new(big.Int).Sub(latest.RoundID, bigOne)
	if previousID.Sign() <= 0 {
		return nil
	}
	previous, err := feed.RoundData(ctx, previousID)
	if err != nil {
		return fmt.Errorf("read previous round: %w", err)
	}
	if previous.Answer == nil || previous.Answer.Sign() <= 0 {
		return ErrInvalidPrice
	}
	move := percentageChange(latest.Answer, previous.Answer)
	if move.Cmp(new(big.Int).SetUint64(limitPercent)) >= 0 {
		return &VolatilityError{Percent: move}
	}
	return nil
}

// percentageChange computes |current-reference| / reference as a whole
// percentage, truncated toward zero.
func percentageChange(current, reference *big.Int) *big.Int {
	diff := new(big.Int).Sub(current, reference)
	diff.Abs(diff)
	diff.Mul(diff, bigHundred)
	return diff.Quo(diff, reference)
}

// normalizePrice rescales a raw answer from the source's native decimals to
// PriceDecimals.
func normalizePrice(answer *big.Int, decimals uint8) *big.Int {
	normalized := new(big.Int).Set(answer)
	switch {
	case decimals > PriceDecimals:
		scale := pow10(int(decimals) - PriceDecimals)
		normalized.Quo(normalized, scale)
	case decimals < PriceDecimals:
		scale := pow10(PriceDecimals - int(decimals))
		normalized.Mul(normalized, scale)
	}
	return normalized
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
