package oracle

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"collend/native/assets"
	nativecommon "collend/native/common"
)

// EvaluateCircuitBreaker recomputes the asset's price deviation and latches
// or clears the breaker accordingly. The breaker never resets on a timer;
// only a re-evaluation that observes the deviation back under the threshold
// clears it.
//
// Deviation source depends on the oracle count: with two active sources it is
// their pairwise difference; with a single active round oracle it is the move
// between the two most recent rounds, so a lone feed can still trip the
// breaker on a sharp jump. A single TWAP source carries no prior observation
// to compare against and evaluates to zero deviation.
//
// The call is idempotent: re-evaluating an unchanged state returns the same
// (broken, deviation) pair and emits nothing. Transition events fire exactly
// once per flip.
func (e *Engine) EvaluateCircuitBreaker(ctx context.Context, asset common.Address) (bool, *big.Int, error) {
	if e == nil || e.registry == nil || e.state == nil {
		return false, nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return false, nil, err
	}

	cfg, err := e.registry.GetAssetInfo(asset)
	if err != nil {
		return false, nil, err
	}

	snapshot := e.CurrentConfig()

	var deviation *big.Int
	switch {
	case cfg.ActiveOracleCount() >= 2:
		roundPrice, err := e.roundPriceFor(ctx, cfg, snapshot)
		if err != nil {
			return false, nil, err
		}
		twapPrice, err := e.twapPriceFor(ctx, asset, cfg)
		if err != nil {
			return false, nil, err
		}
		deviation = pairwiseDeviation(roundPrice, twapPrice)
	case cfg.Round.Active.Bool():
		deviation, err = e.roundOverRoundDeviation(ctx, cfg)
		if err != nil {
			return false, nil, err
		}
	default:
		deviation = new(big.Int)
	}

	limit := new(big.Int).SetUint64(snapshot.CircuitBreakerPercent)
	broken := deviation.Cmp(limit) >= 0

	e.breakerMu.Lock()
	defer e.breakerMu.Unlock()

	previous, err := e.state.Broken(asset)
	if err != nil {
		return false, nil, err
	}
	if broken != previous {
		if err := e.state.SetBroken(asset, broken); err != nil {
			return false, nil, err
		}
		if broken {
			e.logger.Warn("circuit breaker tripped",
				"asset", asset.Hex(), "deviation", deviation.String(), "limit", limit.String())
			if e.emitter != nil {
				e.emitter.BreakerTripped(asset, new(big.Int).Set(deviation))
			}
		} else {
			e.logger.Info("circuit breaker reset",
				"asset", asset.Hex(), "deviation", deviation.String())
			if e.emitter != nil {
				e.emitter.BreakerReset(asset, new(big.Int).Set(deviation))
			}
		}
	}

	return broken, deviation, nil
}

// CircuitBroken reports the latched breaker state without re-evaluating.
func (e *Engine) CircuitBroken(asset common.Address) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return false, err
	}
	return e.state.Broken(asset)
}

// roundOverRoundDeviation compares the two most recent rounds of the asset's
// round feed. It deliberately bypasses the freshness and volatility guards:
// the breaker must be able to observe exactly the moves those guards reject.
func (e *Engine) roundOverRoundDeviation(ctx context.Context, cfg *assets.AssetConfig) (*big.Int, error) {
	feed, err := e.roundFeed(cfg)
	if err != nil {
		return nil, err
	}
	latest, err := feed.LatestRoundData(ctx)
	if err != nil {
		return nil, fmt.Errorf("read latest round: %w", err)
	}
	if latest.Answer == nil || latest.Answer.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	if latest.RoundID == nil {
		return nil, ErrStalePrice
	}
	previousID := new(big.Int).Sub(latest.RoundID, bigOne)
	if previousID.Sign() <= 0 {
		return new(big.Int), nil
	}
	previous, err := feed.RoundData(ctx, previousID)
	if err != nil {
		return nil, fmt.Errorf("read previous round: %w", err)
	}
	if previous.Answer == nil || previous.Answer.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	return percentageChange(latest.Answer, previous.Answer), nil
}
