package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"collend/native/assets"
	nativecommon "collend/native/common"
)

const moduleName = "oracle"

var bigTwo = big.NewInt(2)

// AssetSource exposes the registry lookups the engine needs.
type AssetSource interface {
	GetAssetInfo(asset common.Address) (*assets.AssetConfig, error)
}

// engineState persists the per-asset circuit-breaker flag.
type engineState interface {
	Broken(asset common.Address) (bool, error)
	SetBroken(asset common.Address, broken bool) error
}

// Engine aggregates the configured price sources of an asset into one
// canonical USD price at PriceDecimals, guarded by the per-asset circuit
// breaker. Configuration is read from the registry on every call; the breaker
// flag is the only state the engine owns.
type Engine struct {
	mu       sync.Mutex
	registry AssetSource
	state    engineState
	feeds    FeedProvider
	cfg      Config
	nowFn    func() time.Time
	logger   *slog.Logger
	emitter  Emitter
	pauses   nativecommon.PauseView

	// breakerMu serializes the breaker's read-modify-write so concurrent
	// evaluations of the same transition emit a single event.
	breakerMu sync.Mutex
}

func NewEngine(registry AssetSource, cfg Config) *Engine {
	return &Engine{
		registry: registry,
		cfg:      cfg,
		nowFn:    time.Now,
		logger:   slog.Default(),
	}
}

// SetState wires the engine to the breaker persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetFeeds wires the engine to live feed clients.
func (e *Engine) SetFeeds(feeds FeedProvider) { e.feeds = feeds }

// SetNowFunc overrides the clock used for freshness checks. Tests inject a
// fixed time here.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if e == nil || now == nil {
		return
	}
	e.nowFn = now
}

func (e *Engine) SetLogger(logger *slog.Logger) {
	if e == nil || logger == nil {
		return
	}
	e.logger = logger
}

func (e *Engine) SetEmitter(emitter Emitter) {
	if e == nil {
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// UpdateConfig swaps the global oracle configuration after validating bounds.
func (e *Engine) UpdateConfig(cfg Config) error {
	if e == nil {
		return errNilState
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
	return nil
}

// CurrentConfig returns the active global configuration.
func (e *Engine) CurrentConfig() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// GetAssetPrice returns the canonical USD price for a listed asset. A single
// active source is returned directly; two active sources are combined as the
// median, which for a pair is their arithmetic mean. The read fails closed
// while the asset's circuit breaker is tripped.
func (e *Engine) GetAssetPrice(ctx context.Context, asset common.Address) (*big.Int, error) {
	cfg, snapshot, err := e.begin(asset)
	if err != nil {
		return nil, err
	}

	switch cfg.ActiveOracleCount() {
	case 1:
		if cfg.Round.Active.Bool() {
			return e.roundPriceFor(ctx, cfg, snapshot)
		}
		return e.twapPriceFor(ctx, asset, cfg)
	case 2:
		roundPrice, err := e.roundPriceFor(ctx, cfg, snapshot)
		if err != nil {
			return nil, err
		}
		twapPrice, err := e.twapPriceFor(ctx, asset, cfg)
		if err != nil {
			return nil, err
		}
		return medianOfTwo(roundPrice, twapPrice), nil
	default:
		// The registry rejects configs below the minimum oracle count, so a
		// zero-source asset only appears when state was corrupted out of band.
		return nil, ErrNoActiveOracles
	}
}

// GetAssetPriceByType bypasses aggregation and reads the named source
// directly. The circuit breaker still applies, and the requested type must be
// configured and active.
func (e *Engine) GetAssetPriceByType(ctx context.Context, asset common.Address, oracleType assets.OracleType) (*big.Int, error) {
	cfg, snapshot, err := e.begin(asset)
	if err != nil {
		return nil, err
	}

	switch oracleType {
	case assets.RoundOracle:
		if !cfg.Round.Active.Bool() {
			return nil, fmt.Errorf("%w: round oracle inactive for %s", ErrOracleNotConfigured, asset.Hex())
		}
		return e.roundPriceFor(ctx, cfg, snapshot)
	case assets.TwapOracle:
		if !cfg.Twap.Active.Bool() {
			return nil, fmt.Errorf("%w: twap oracle inactive for %s", ErrOracleNotConfigured, asset.Hex())
		}
		return e.twapPriceFor(ctx, asset, cfg)
	default:
		return nil, fmt.Errorf("%w: unknown oracle type %d", ErrOracleNotConfigured, oracleType)
	}
}

// CheckPriceDeviation reports whether the asset's two active sources disagree
// by at least the circuit-breaker percentage, and by how much. The percentage
// is |a-b| / min(a,b) × 100, truncated.
func (e *Engine) CheckPriceDeviation(ctx context.Context, asset common.Address) (bool, *big.Int, error) {
	if e == nil || e.registry == nil {
		return false, nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return false, nil, err
	}
	cfg, err := e.registry.GetAssetInfo(asset)
	if err != nil {
		return false, nil, err
	}
	if actual := cfg.ActiveOracleCount(); actual < 2 {
		return false, nil, &assets.NotEnoughOraclesError{Asset: asset, Required: 2, Actual: actual}
	}

	snapshot := e.CurrentConfig()
	roundPrice, err := e.roundPriceFor(ctx, cfg, snapshot)
	if err != nil {
		return false, nil, err
	}
	twapPrice, err := e.twapPriceFor(ctx, asset, cfg)
	if err != nil {
		return false, nil, err
	}

	deviation := pairwiseDeviation(roundPrice, twapPrice)
	limit := new(big.Int).SetUint64(snapshot.CircuitBreakerPercent)
	return deviation.Cmp(limit) >= 0, deviation, nil
}

// begin performs the checks shared by every price read: pause guard, registry
// lookup and the circuit-breaker gate. It returns the asset config and a
// snapshot of the global oracle config.
func (e *Engine) begin(asset common.Address) (*assets.AssetConfig, Config, error) {
	if e == nil || e.registry == nil || e.state == nil {
		return nil, Config{}, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, Config{}, err
	}
	cfg, err := e.registry.GetAssetInfo(asset)
	if err != nil {
		return nil, Config{}, err
	}
	broken, err := e.state.Broken(asset)
	if err != nil {
		return nil, Config{}, err
	}
	if broken {
		return nil, Config{}, fmt.Errorf("%w: asset %s", ErrCircuitBreakerOpen, asset.Hex())
	}
	return cfg, e.CurrentConfig(), nil
}

func (e *Engine) roundPriceFor(ctx context.Context, cfg *assets.AssetConfig, snapshot Config) (*big.Int, error) {
	feed, err := e.roundFeed(cfg)
	if err != nil {
		return nil, err
	}
	return e.readRoundPrice(ctx, feed, e.nowFn(), snapshot)
}

func (e *Engine) twapPriceFor(ctx context.Context, asset common.Address, cfg *assets.AssetConfig) (*big.Int, error) {
	if e.feeds == nil {
		return nil, errNilFeeds
	}
	pool, err := e.feeds.TwapPool(cfg.Twap.Pool)
	if err != nil {
		return nil, fmt.Errorf("resolve twap pool: %w", err)
	}
	return e.readTwapPrice(ctx, pool, asset, cfg.Twap.WindowSeconds)
}

func (e *Engine) roundFeed(cfg *assets.AssetConfig) (RoundFeed, error) {
	if e.feeds == nil {
		return nil, errNilFeeds
	}
	feed, err := e.feeds.RoundFeed(cfg.Round.Source)
	if err != nil {
		return nil, fmt.Errorf("resolve round feed: %w", err)
	}
	return feed, nil
}

// medianOfTwo is the arithmetic mean, truncated.
func medianOfTwo(a, b *big.Int) *big.Int {
	sum := new(big.Int).Add(a, b)
	return sum.Quo(sum, bigTwo)
}

// pairwiseDeviation computes |a-b| / min(a,b) × 100, truncated.
func pairwiseDeviation(a, b *big.Int) *big.Int {
	diff := new(big.Int).Sub(a, b)
	diff.Abs(diff)
	lower := a
	if b.Cmp(a) < 0 {
		lower = b
	}
	if lower.Sign() <= 0 {
		return new(big.Int)
	}
	diff.Mul(diff, bigHundred)
	return diff.Quo(diff, lower)
}
