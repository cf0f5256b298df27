package observability

import (
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"collend/native/assets"
)

// EventEmitter publishes registry and oracle lifecycle events as structured
// log lines and Prometheus samples. It satisfies the emitter contracts of
// both engines.
type EventEmitter struct {
	logger   *slog.Logger
	oracle   *OracleMetrics
	registry *RegistryMetrics
}

func NewEventEmitter(logger *slog.Logger) *EventEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventEmitter{
		logger:   logger,
		oracle:   Oracle(),
		registry: Registry(),
	}
}

func (e *EventEmitter) AssetListed(asset common.Address) {
	if e == nil {
		return
	}
	e.logger.Info("asset listed", "event", "assets.listed", "asset", asset.Hex())
	e.registry.RecordListing()
}

func (e *EventEmitter) AssetUpdated(asset common.Address) {
	if e == nil {
		return
	}
	e.logger.Info("asset configuration updated", "event", "assets.updated", "asset", asset.Hex())
	e.registry.RecordUpdate("config")
}

func (e *EventEmitter) AssetTierUpdated(asset common.Address, tier assets.Tier) {
	if e == nil {
		return
	}
	e.logger.Info("asset tier updated", "event", "assets.tier_updated", "asset", asset.Hex(), "tier", tier.String())
	e.registry.RecordUpdate("tier")
}

func (e *EventEmitter) BreakerTripped(asset common.Address, deviation *big.Int) {
	if e == nil {
		return
	}
	e.logger.Warn("circuit breaker tripped", "event", "oracle.breaker_tripped", "asset", asset.Hex(), "deviationPercent", deviationString(deviation))
	e.oracle.RecordBreakerState(asset.Hex(), true, deviation)
}

func (e *EventEmitter) BreakerReset(asset common.Address, deviation *big.Int) {
	if e == nil {
		return
	}
	e.logger.Info("circuit breaker reset", "event", "oracle.breaker_reset", "asset", asset.Hex(), "deviationPercent", deviationString(deviation))
	e.oracle.RecordBreakerState(asset.Hex(), false, deviation)
}

func deviationString(deviation *big.Int) string {
	if deviation == nil {
		return "0"
	}
	return deviation.String()
}
