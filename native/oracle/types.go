package oracle

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// RoundData is one observation from a round-based price feed. RoundID and
// AnsweredInRound are the feed's native uint80 round counters; Answer is the
// raw price at the feed's native decimals.
type RoundData struct {
	RoundID         *big.Int
	Answer          *big.Int
	UpdatedAt       time.Time
	AnsweredInRound *big.Int
}

// RoundFeed is the consumed contract of a round-based price source.
type RoundFeed interface {
	LatestRoundData(ctx context.Context) (RoundData, error)
	RoundData(ctx context.Context, roundID *big.Int) (RoundData, error)
	Decimals(ctx context.Context) (uint8, error)
}

// PoolTokens describes the two legs of a TWAP pool.
type PoolTokens struct {
	Token0    common.Address
	Token1    common.Address
	Decimals0 uint8
	Decimals1 uint8
}

// TwapPool is the consumed contract of a Uniswap-V3-style pool. Observe
// returns one cumulative tick value per requested sample age, oldest first.
type TwapPool interface {
	Observe(ctx context.Context, secondsAgos []uint32) ([]*big.Int, error)
	Tokens(ctx context.Context) (PoolTokens, error)
}

// FeedProvider resolves configured source addresses into live feed clients.
type FeedProvider interface {
	RoundFeed(source common.Address) (RoundFeed, error)
	TwapPool(pool common.Address) (TwapPool, error)
}

// Emitter receives circuit-breaker transition notifications. Evaluations that
// do not change state emit nothing.
type Emitter interface {
	BreakerTripped(asset common.Address, deviation *big.Int)
	BreakerReset(asset common.Address, deviation *big.Int)
}
