// Package metrics holds the Prometheus collectors for the execution pipeline.
// They register with the default registry and are served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "tradeclarity"
	subsystem = "execution"
)

// SignalsTotal counts handled signals by outcome
// (executed, rejected, duplicate, failed, cancelled).
var SignalsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "signals_total",
		Help:      "Total number of trade signals handled, by outcome",
	},
	[]string{"outcome"},
)

// RejectionsTotal counts rejections by the check that stopped the signal.
var RejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "rejections_total",
		Help:      "Total number of rejected signals, by check",
	},
	[]string{"check"},
)

// TradesTotal counts trades applied to the ledger.
var TradesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "trades_total",
		Help:      "Total number of trades applied to the ledger",
	},
	[]string{"side", "action"},
)

// RealizedPnLTotal accumulates realized P&L since process start. Gauges are
// used because P&L can be negative.
var RealizedPnLTotal = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "realized_pnl",
		Help:      "Realized PnL accumulated since start",
	},
)

// DailyPnL mirrors the orchestrator's daily P&L accumulator.
var DailyPnL = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "daily_pnl",
		Help:      "Daily PnL accumulator",
	},
)

// Exposure is the total open notional after the last ledger change.
var Exposure = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "exposure",
		Help:      "Sum of quantity times current price over open positions",
	},
)

// OpenPositions is the number of ledger entries.
var OpenPositions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "open_positions",
		Help:      "Current number of open positions",
	},
)

// BrokerLatency measures execution adapter round trips in milliseconds.
var BrokerLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "broker_latency_ms",
		Help:      "Execution adapter latency in milliseconds",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	},
	[]string{"result"},
)

// SideChannelErrors counts failed best-effort publishes (bus, store, audit,
// notify).
var SideChannelErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "side_channel_errors_total",
		Help:      "Failed best-effort event deliveries, by channel",
	},
	[]string{"channel"},
)
