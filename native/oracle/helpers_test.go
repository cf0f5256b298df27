package oracle

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"collend/native/assets"
)

var (
	testAsset = common.HexToAddress("0x00000000000000000000000000000000000000AA")
	testQuote = common.HexToAddress("0x00000000000000000000000000000000000000BB")
	testFeed  = common.HexToAddress("0x00000000000000000000000000000000000000F1")
	testPool  = common.HexToAddress("0x00000000000000000000000000000000000000D1")
)

type stubRegistry struct {
	configs map[common.Address]*assets.AssetConfig
}

func (s *stubRegistry) GetAssetInfo(asset common.Address) (*assets.AssetConfig, error) {
	cfg, ok := s.configs[asset]
	if !ok {
		return nil, fmt.Errorf("%w: %s", assets.ErrAssetNotListed, asset.Hex())
	}
	return cfg.Clone(), nil
}

type memBreakerState struct {
	broken map[common.Address]bool
}

func newMemBreakerState() *memBreakerState {
	return &memBreakerState{broken: make(map[common.Address]bool)}
}

func (s *memBreakerState) Broken(asset common.Address) (bool, error) {
	return s.broken[asset], nil
}

func (s *memBreakerState) SetBroken(asset common.Address, broken bool) error {
	s.broken[asset] = broken
	return nil
}

type stubRoundFeed struct {
	latest   RoundData
	rounds   map[uint64]RoundData
	decimals uint8
	err      error
}

func (f *stubRoundFeed) LatestRoundData(context.Context) (RoundData, error) {
	if f.err != nil {
		return RoundData{}, f.err
	}
	return f.latest, nil
}

func (f *stubRoundFeed) RoundData(_ context.Context, roundID *big.Int) (RoundData, error) {
	round, ok := f.rounds[roundID.Uint64()]
	if !ok {
		return RoundData{}, fmt.Errorf("round %s not found", roundID)
	}
	return round, nil
}

func (f *stubRoundFeed) Decimals(context.Context) (uint8, error) {
	return f.decimals, nil
}

type stubTwapPool struct {
	cumulatives []*big.Int
	tokens      PoolTokens
	err         error
}

func (p *stubTwapPool) Observe(context.Context, []uint32) ([]*big.Int, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.cumulatives, nil
}

func (p *stubTwapPool) Tokens(context.Context) (PoolTokens, error) {
	return p.tokens, nil
}

type stubFeeds struct {
	feed *stubRoundFeed
	pool *stubTwapPool
}

func (s *stubFeeds) RoundFeed(common.Address) (RoundFeed, error) {
	if s.feed == nil {
		return nil, fmt.Errorf("no round feed")
	}
	return s.feed, nil
}

func (s *stubFeeds) TwapPool(common.Address) (TwapPool, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("no twap pool")
	}
	return s.pool, nil
}

type recordingEmitter struct {
	tripped []*big.Int
	resets  []*big.Int
}

func (r *recordingEmitter) BreakerTripped(_ common.Address, deviation *big.Int) {
	r.tripped = append(r.tripped, deviation)
}

func (r *recordingEmitter) BreakerReset(_ common.Address, deviation *big.Int) {
	r.resets = append(r.resets, deviation)
}

// testEngine wires an engine over in-memory stubs with a fixed clock.
func testEngine(cfg *assets.AssetConfig, feeds *stubFeeds, now time.Time) (*Engine, *memBreakerState) {
	registry := &stubRegistry{configs: map[common.Address]*assets.AssetConfig{testAsset: cfg}}
	state := newMemBreakerState()
	engine := NewEngine(registry, DefaultConfig())
	engine.SetState(state)
	engine.SetFeeds(feeds)
	engine.SetNowFunc(func() time.Time { return now })
	return engine, state
}

// dualSourceConfig lists the asset with both oracles active.
func dualSourceConfig() *assets.AssetConfig {
	return &assets.AssetConfig{
		Active:               assets.FlagActive,
		Decimals:             18,
		BorrowThreshold:      700,
		LiquidationThreshold: 800,
		MaxSupplyThreshold:   big.NewInt(1_000_000),
		MinimumOracles:       2,
		PrimaryOracle:        assets.RoundOracle,
		Tier:                 assets.TierCrossA,
		Round:                assets.RoundOracleConfig{Source: testFeed, Active: assets.FlagActive},
		Twap:                 assets.TwapConfig{Pool: testPool, WindowSeconds: 900, Active: assets.FlagActive},
	}
}

func roundOnlyConfig() *assets.AssetConfig {
	cfg := dualSourceConfig()
	cfg.MinimumOracles = 1
	cfg.Twap.Active = assets.FlagInactive
	return cfg
}

func twapOnlyConfig() *assets.AssetConfig {
	cfg := dualSourceConfig()
	cfg.MinimumOracles = 1
	cfg.PrimaryOracle = assets.TwapOracle
	cfg.Round.Active = assets.FlagInactive
	return cfg
}

// twapCumulatives builds a two-sample observation with the given average tick
// over a 900 second window.
func twapCumulatives(averageTick int64) []*big.Int {
	delta := averageTick * 900
	return []*big.Int{big.NewInt(0), big.NewInt(delta)}
}

// usdPool pairs the test asset against a quote token of equal precision, so
// a tick-zero pool resolves to exactly one quote unit per asset.
func usdPool() PoolTokens {
	return PoolTokens{
		Token0:    testAsset,
		Token1:    testQuote,
		Decimals0: 18,
		Decimals1: 18,
	}
}
