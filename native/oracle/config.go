package oracle

import (
	"fmt"
	"time"
)

// Bounds for the global oracle configuration.
const (
	MinFreshnessThreshold = 15 * time.Minute
	MaxFreshnessThreshold = 24 * time.Hour
	MinVolatilityWindow   = 5 * time.Minute
	MaxVolatilityWindow   = 4 * time.Hour
	MinVolatilityPercent  = 5
	MaxVolatilityPercent  = 30
	MinBreakerPercent     = 25
	MaxBreakerPercent     = 70
)

// Config is the global oracle tuning shared by every asset.
//
// FreshnessThreshold is the maximum quote age before a read is rejected as
// timed out. VolatilityWindow is the quote age at which the round-over-round
// volatility guard starts applying; quotes fresher than the window skip the
// guard entirely. VolatilityPercent and CircuitBreakerPercent are whole
// percentage limits for the volatility guard and the breaker trip.
type Config struct {
	FreshnessThreshold    time.Duration
	VolatilityWindow      time.Duration
	VolatilityPercent     uint64
	CircuitBreakerPercent uint64
}

// DefaultConfig returns the production defaults: 8h freshness, 1h volatility
// window, 20% volatility limit, 50% breaker trip.
func DefaultConfig() Config {
	return Config{
		FreshnessThreshold:    8 * time.Hour,
		VolatilityWindow:      time.Hour,
		VolatilityPercent:     20,
		CircuitBreakerPercent: 50,
	}
}

// Validate checks every field against its bound.
func (c Config) Validate() error {
	if c.FreshnessThreshold < MinFreshnessThreshold || c.FreshnessThreshold > MaxFreshnessThreshold {
		return fmt.Errorf("%w: freshness threshold %s outside [%s,%s]",
			ErrInvalidThreshold, c.FreshnessThreshold, MinFreshnessThreshold, MaxFreshnessThreshold)
	}
	if c.VolatilityWindow < MinVolatilityWindow || c.VolatilityWindow > MaxVolatilityWindow {
		return fmt.Errorf("%w: volatility window %s outside [%s,%s]",
			ErrInvalidThreshold, c.VolatilityWindow, MinVolatilityWindow, MaxVolatilityWindow)
	}
	if c.VolatilityPercent < MinVolatilityPercent || c.VolatilityPercent > MaxVolatilityPercent {
		return fmt.Errorf("%w: volatility percent %d outside [%d,%d]",
			ErrInvalidThreshold, c.VolatilityPercent, MinVolatilityPercent, MaxVolatilityPercent)
	}
	if c.CircuitBreakerPercent < MinBreakerPercent || c.CircuitBreakerPercent > MaxBreakerPercent {
		return fmt.Errorf("%w: circuit breaker percent %d outside [%d,%d]",
			ErrInvalidThreshold, c.CircuitBreakerPercent, MinBreakerPercent, MaxBreakerPercent)
	}
	return nil
}
