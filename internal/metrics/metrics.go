package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubgraphErrorsTotal tracks failed indexer queries.
	SubgraphErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dashboard_subgraph_errors_total",
			Help: "Total number of failed subgraph queries",
		},
	)

	// ChainFallbackTotal tracks chain-scan fallbacks per reporting domain.
	ChainFallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_chain_fallback_total",
			Help: "Total number of on-chain fallback scans",
		},
		[]string{"domain"},
	)

	// ReportRefreshSeconds tracks per-domain refresh latency.
	ReportRefreshSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashboard_report_refresh_seconds",
			Help:    "Reporting domain refresh latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"domain", "source"},
	)

	// OraclePollsTotal tracks oracle poll outcomes.
	OraclePollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_oracle_polls_total",
			Help: "Total number of oracle polls",
		},
		[]string{"outcome"},
	)

	// OracleOnline is 1 while the oracle poller is online.
	OracleOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_oracle_online",
			Help: "Whether the oracle poller is online (1) or offline (0)",
		},
	)

	// TxTotal tracks submitted transactions per action and outcome.
	TxTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_tx_total",
			Help: "Total number of submitted transactions",
		},
		[]string{"action", "outcome"},
	)
)
