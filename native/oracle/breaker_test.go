package oracle

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "collend/native/common"
)

// slowBreakerState widens the window between the breaker's flag read and its
// write so overlapping evaluations would interleave without serialization.
type slowBreakerState struct {
	inner *memBreakerState
}

func (s *slowBreakerState) Broken(asset common.Address) (bool, error) {
	broken, err := s.inner.Broken(asset)
	time.Sleep(time.Millisecond)
	return broken, err
}

func (s *slowBreakerState) SetBroken(asset common.Address, broken bool) error {
	return s.inner.SetBroken(asset, broken)
}

func TestEvaluateCircuitBreakerTripsAndLatches(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	feeds := healthyFeeds(now)
	// Round at 2.000000 against twap near 1.000100 is a ~99% spread, past
	// the 50% default threshold.
	engine, state := testEngine(dualSourceConfig(), feeds, now)
	emitter := &recordingEmitter{}
	engine.SetEmitter(emitter)

	broken, deviation, err := engine.EvaluateCircuitBreaker(context.Background(), testAsset)
	if err != nil {
		t.Fatalf("evaluate breaker: %v", err)
	}
	if !broken {
		t.Fatalf("expected breaker to trip at deviation %s", deviation)
	}
	if latched, _ := state.Broken(testAsset); !latched {
		t.Fatalf("breaker flag not latched")
	}
	if len(emitter.tripped) != 1 || len(emitter.resets) != 0 {
		t.Fatalf("expected exactly one trip event, got %d trips %d resets", len(emitter.tripped), len(emitter.resets))
	}

	// The latched flag blocks reads until an explicit re-evaluation clears it.
	if _, err := engine.GetAssetPrice(context.Background(), testAsset); err == nil {
		t.Fatalf("expected read to fail while breaker open")
	}
}

func TestEvaluateCircuitBreakerConcurrentSingleTrip(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	engine, state := testEngine(dualSourceConfig(), healthyFeeds(now), now)
	engine.SetState(&slowBreakerState{inner: state})
	emitter := &recordingEmitter{}
	engine.SetEmitter(emitter)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := engine.EvaluateCircuitBreaker(context.Background(), testAsset); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("evaluate breaker: %v", err)
	}

	if latched, _ := state.Broken(testAsset); !latched {
		t.Fatalf("breaker flag not latched")
	}
	if len(emitter.tripped) != 1 || len(emitter.resets) != 0 {
		t.Fatalf("one Normal to Broken transition must emit one event, got %d trips %d resets",
			len(emitter.tripped), len(emitter.resets))
	}
}

func TestEvaluateCircuitBreakerIdempotent(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	engine, _ := testEngine(dualSourceConfig(), healthyFeeds(now), now)
	emitter := &recordingEmitter{}
	engine.SetEmitter(emitter)

	for i := 0; i < 3; i++ {
		broken, _, err := engine.EvaluateCircuitBreaker(context.Background(), testAsset)
		if err != nil {
			t.Fatalf("evaluate breaker: %v", err)
		}
		if !broken {
			t.Fatalf("expected breaker open on evaluation %d", i)
		}
	}
	if len(emitter.tripped) != 1 {
		t.Fatalf("expected a single trip event across re-evaluations, got %d", len(emitter.tripped))
	}
}

func TestEvaluateCircuitBreakerResetsWhenCalm(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	feeds := healthyFeeds(now)
	engine, state := testEngine(dualSourceConfig(), feeds, now)
	emitter := &recordingEmitter{}
	engine.SetEmitter(emitter)

	if _, _, err := engine.EvaluateCircuitBreaker(context.Background(), testAsset); err != nil {
		t.Fatalf("evaluate breaker: %v", err)
	}
	if latched, _ := state.Broken(testAsset); !latched {
		t.Fatalf("breaker should be open")
	}

	// Bring the round source back in line with the twap quote and re-evaluate.
	feeds.feed.latest.Answer = big.NewInt(100_010_000) // 1.000100 at 8 decimals
	broken, deviation, err := engine.EvaluateCircuitBreaker(context.Background(), testAsset)
	if err != nil {
		t.Fatalf("re-evaluate breaker: %v", err)
	}
	if broken {
		t.Fatalf("expected breaker reset at deviation %s", deviation)
	}
	if latched, _ := state.Broken(testAsset); latched {
		t.Fatalf("breaker flag still latched after reset")
	}
	if len(emitter.resets) != 1 {
		t.Fatalf("expected one reset event, got %d", len(emitter.resets))
	}

	price, err := engine.GetAssetPrice(context.Background(), testAsset)
	if err != nil {
		t.Fatalf("read after reset: %v", err)
	}
	if price.Sign() <= 0 {
		t.Fatalf("unexpected price %s", price)
	}
}

func TestEvaluateCircuitBreakerSingleRoundSource(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	feeds := &stubFeeds{
		feed: &stubRoundFeed{
			latest: RoundData{
				RoundID: big.NewInt(10),
				// 60% jump over the previous round, quote far older than the
				// freshness threshold. The breaker still observes the move.
				Answer:          scaled(160, 8),
				UpdatedAt:       now.Add(-30 * time.Hour),
				AnsweredInRound: big.NewInt(10),
			},
			rounds: map[uint64]RoundData{
				9: {
					RoundID:         big.NewInt(9),
					Answer:          scaled(100, 8),
					UpdatedAt:       now.Add(-31 * time.Hour),
					AnsweredInRound: big.NewInt(9),
				},
			},
			decimals: 8,
		},
	}
	engine, _ := testEngine(roundOnlyConfig(), feeds, now)

	broken, deviation, err := engine.EvaluateCircuitBreaker(context.Background(), testAsset)
	if err != nil {
		t.Fatalf("evaluate breaker: %v", err)
	}
	if !broken {
		t.Fatalf("expected breaker to trip on 60%% round-over-round move")
	}
	if deviation.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("expected 60%% deviation, got %s", deviation)
	}
}

func TestEvaluateCircuitBreakerFirstRoundHasNoReference(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	feeds := &stubFeeds{
		feed: &stubRoundFeed{
			latest: RoundData{
				RoundID:         big.NewInt(1),
				Answer:          scaled(100, 8),
				UpdatedAt:       now.Add(-time.Minute),
				AnsweredInRound: big.NewInt(1),
			},
			decimals: 8,
		},
	}
	engine, _ := testEngine(roundOnlyConfig(), feeds, now)

	broken, deviation, err := engine.EvaluateCircuitBreaker(context.Background(), testAsset)
	if err != nil {
		t.Fatalf("evaluate breaker: %v", err)
	}
	if broken || deviation.Sign() != 0 {
		t.Fatalf("expected zero deviation on the first round, got broken=%v deviation=%s", broken, deviation)
	}
}

func TestEvaluateCircuitBreakerSingleTwapSource(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	feeds := &stubFeeds{pool: &stubTwapPool{cumulatives: twapCumulatives(1), tokens: usdPool()}}
	engine, _ := testEngine(twapOnlyConfig(), feeds, now)

	broken, deviation, err := engine.EvaluateCircuitBreaker(context.Background(), testAsset)
	if err != nil {
		t.Fatalf("evaluate breaker: %v", err)
	}
	if broken || deviation.Sign() != 0 {
		t.Fatalf("a lone twap source has no reference to deviate from, got broken=%v deviation=%s", broken, deviation)
	}
}

func TestCircuitBrokenReadsLatchedFlag(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	engine, state := testEngine(dualSourceConfig(), healthyFeeds(now), now)

	broken, err := engine.CircuitBroken(testAsset)
	if err != nil || broken {
		t.Fatalf("expected closed breaker, got broken=%v err=%v", broken, err)
	}
	if err := state.SetBroken(testAsset, true); err != nil {
		t.Fatalf("set broken: %v", err)
	}
	broken, err = engine.CircuitBroken(testAsset)
	if err != nil || !broken {
		t.Fatalf("expected open breaker, got broken=%v err=%v", broken, err)
	}
}

func TestCircuitBrokenHonorsPause(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	engine, _ := testEngine(dualSourceConfig(), healthyFeeds(now), now)
	pauses := nativecommon.NewPauses(moduleName)
	engine.SetPauses(pauses)

	if _, err := engine.CircuitBroken(testAsset); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}

	pauses.Set(moduleName, false)
	if _, err := engine.CircuitBroken(testAsset); err != nil {
		t.Fatalf("read after unpause: %v", err)
	}
}
