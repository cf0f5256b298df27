package observability

import (
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ModuleMetrics bundles the request counters and latency histogram for the
// JSON-RPC module surface.
type ModuleMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *ModuleMetrics

	oracleMetricsOnce sync.Once
	oracleRegistry    *OracleMetrics

	registryMetricsOnce sync.Once
	registryMetricsReg  *RegistryMetrics
)

// Module returns the lazily-initialised metrics registry used to record RPC
// module activity.
func Module() *ModuleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &ModuleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "collend",
				Subsystem: "module",
				Name:      "requests_total",
				Help:      "Total JSON-RPC module requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "collend",
				Subsystem: "module",
				Name:      "errors_total",
				Help:      "Total JSON-RPC module errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "collend",
				Subsystem: "module",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC module handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *ModuleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// OracleMetrics bundles collectors tracking price reads and circuit-breaker
// health.
type OracleMetrics struct {
	priceReads      *prometheus.CounterVec
	adapterFailures *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec
	breakerFlips    *prometheus.CounterVec
	deviation       *prometheus.GaugeVec
}

// Oracle exposes the metrics registry for the price aggregation engine.
func Oracle() *OracleMetrics {
	oracleMetricsOnce.Do(func() {
		oracleRegistry = &OracleMetrics{
			priceReads: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "collend",
				Subsystem: "oracle",
				Name:      "price_reads_total",
				Help:      "Count of price reads segmented by source and outcome.",
			}, []string{"source", "outcome"}),
			adapterFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "collend",
				Subsystem: "oracle",
				Name:      "adapter_failures_total",
				Help:      "Count of adapter read failures segmented by source and reason.",
			}, []string{"source", "reason"}),
			breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "collend",
				Subsystem: "oracle",
				Name:      "circuit_breaker_open",
				Help:      "Indicates whether the circuit breaker for an asset is open (1) or closed (0).",
			}, []string{"asset"}),
			breakerFlips: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "collend",
				Subsystem: "oracle",
				Name:      "circuit_breaker_transitions_total",
				Help:      "Count of circuit-breaker transitions segmented by asset and direction.",
			}, []string{"asset", "direction"}),
			deviation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "collend",
				Subsystem: "oracle",
				Name:      "price_deviation_percent",
				Help:      "Most recent cross-source price deviation per asset, in whole percent.",
			}, []string{"asset"}),
		}
		prometheus.MustRegister(
			oracleRegistry.priceReads,
			oracleRegistry.adapterFailures,
			oracleRegistry.breakerState,
			oracleRegistry.breakerFlips,
			oracleRegistry.deviation,
		)
	})
	return oracleRegistry
}

// RecordPriceRead increments the read counter for the supplied source.
func (m *OracleMetrics) RecordPriceRead(source string, err error) {
	if m == nil {
		return
	}
	src := labelSource(source)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.priceReads.WithLabelValues(src, outcome).Inc()
}

// RecordAdapterFailure increments the failure counter for the supplied reason.
func (m *OracleMetrics) RecordAdapterFailure(source, reason string) {
	if m == nil {
		return
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = "unspecified"
	}
	m.adapterFailures.WithLabelValues(labelSource(source), reason).Inc()
}

// RecordBreakerState updates the breaker gauge and transition counter for an
// asset. Deviation may be nil when no fresh reading was available.
func (m *OracleMetrics) RecordBreakerState(asset string, open bool, deviation *big.Int) {
	if m == nil {
		return
	}
	label := labelAsset(asset)
	direction := "reset"
	value := 0.0
	if open {
		direction = "trip"
		value = 1
	}
	m.breakerState.WithLabelValues(label).Set(value)
	m.breakerFlips.WithLabelValues(label, direction).Inc()
	if deviation != nil {
		m.RecordDeviation(asset, deviation)
	}
}

// RecordDeviation sets the deviation gauge for an asset.
func (m *OracleMetrics) RecordDeviation(asset string, deviation *big.Int) {
	if m == nil || deviation == nil {
		return
	}
	floatVal, _ := new(big.Float).SetInt(deviation).Float64()
	m.deviation.WithLabelValues(labelAsset(asset)).Set(floatVal)
}

// RegistryMetrics tracks asset-registry lifecycle activity.
type RegistryMetrics struct {
	assetsListed  prometheus.Gauge
	configUpdates *prometheus.CounterVec
}

// Registry exposes the metrics registry for the asset registry.
func Registry() *RegistryMetrics {
	registryMetricsOnce.Do(func() {
		registryMetricsReg = &RegistryMetrics{
			assetsListed: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "collend",
				Subsystem: "registry",
				Name:      "assets_listed",
				Help:      "Number of assets currently listed in the registry.",
			}),
			configUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "collend",
				Subsystem: "registry",
				Name:      "config_updates_total",
				Help:      "Count of accepted registry mutations segmented by kind.",
			}, []string{"kind"}),
		}
		prometheus.MustRegister(
			registryMetricsReg.assetsListed,
			registryMetricsReg.configUpdates,
		)
	})
	return registryMetricsReg
}

// RecordListing increments the listed-assets gauge and the listing counter.
func (m *RegistryMetrics) RecordListing() {
	if m == nil {
		return
	}
	m.assetsListed.Inc()
	m.configUpdates.WithLabelValues("list").Inc()
}

// RecordUpdate increments the update counter for the supplied mutation kind.
func (m *RegistryMetrics) RecordUpdate(kind string) {
	if m == nil {
		return
	}
	if kind = strings.TrimSpace(kind); kind == "" {
		kind = "unknown"
	}
	m.configUpdates.WithLabelValues(kind).Inc()
}

func labelAsset(asset string) string {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return "UNKNOWN"
	}
	return strings.ToLower(trimmed)
}

func labelSource(source string) string {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return "unknown"
	}
	return strings.ToLower(trimmed)
}
