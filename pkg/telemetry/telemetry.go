// Copyright 2025 Certen Protocol
//
// Package telemetry provides the ambient logging and metrics surface shared
// by every ledgercore component: a tagged stdlib logger and a small set of
// Prometheus gauges and counters.

package telemetry

import (
	"log"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Logger wraps a tagged stdlib logger. Components get one via NewLogger so
// every log line carries its component name.
type Logger struct {
	*log.Logger
}

// NewLogger creates a logger tagged with the given component name.
func NewLogger(component string) *Logger {
	return &Logger{log.New(os.Stderr, "["+component+"] ", log.LstdFlags)}
}

// Metrics holds the process-wide Prometheus collectors. A single instance is
// created at startup and threaded through the components that need it.
type Metrics struct {
	BlocksCommitted      prometheus.Counter
	CommitDuration       prometheus.Histogram
	DexFillsTotal        prometheus.Counter
	DexRouteHops         prometheus.Histogram
	ValidatorTransitions *prometheus.CounterVec
	FrostCeremonies      *prometheus.CounterVec
	CircuitBreakerHalts  prometheus.Counter
}

// NewMetrics registers and returns the ledgercore metric collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BlocksCommitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ledgercore",
			Name:      "blocks_committed_total",
			Help:      "Number of blocks committed to the versioned store.",
		}),
		CommitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ledgercore",
			Name:      "commit_duration_seconds",
			Help:      "Time spent flushing the block overlay to the backing store.",
			Buckets:   prometheus.DefBuckets,
		}),
		DexFillsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ledgercore",
			Subsystem: "dex",
			Name:      "fills_total",
			Help:      "Number of individual position fills executed.",
		}),
		DexRouteHops: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ledgercore",
			Subsystem: "dex",
			Name:      "route_hops",
			Help:      "Number of hops in a single filled route trace.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6},
		}),
		ValidatorTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledgercore",
			Subsystem: "stake",
			Name:      "validator_transitions_total",
			Help:      "Validator lifecycle transitions by destination state.",
		}, []string{"to_state"}),
		FrostCeremonies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledgercore",
			Subsystem: "custody",
			Name:      "frost_ceremonies_total",
			Help:      "FROST signing ceremonies by terminal outcome.",
		}, []string{"outcome"}),
		CircuitBreakerHalts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ledgercore",
			Subsystem: "dex",
			Name:      "value_circuit_breaker_halts_total",
			Help:      "Number of times the value circuit breaker invariant was violated.",
		}),
	}
}
