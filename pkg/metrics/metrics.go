package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OrdersPlaced counts orders accepted by the trading service, by side.
var OrdersPlaced = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "atlasbank_orders_placed_total",
		Help: "Total number of orders accepted by the trading service",
	},
	[]string{"side", "type"},
)

// OrdersRejected counts orders rejected during validation or risk checks.
var OrdersRejected = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "atlasbank_orders_rejected_total",
		Help: "Total number of orders rejected, by rejection reason",
	},
	[]string{"reason"},
)

// OrderLatency records latency distribution for the order pipeline.
var OrderLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "atlasbank_order_pipeline_latency_seconds",
		Help:    "Latency in seconds for validate/risk/execute order processing",
		Buckets: prometheus.DefBuckets,
	},
)

// TradesExecuted counts market-order fills written to the ledger.
var TradesExecuted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "atlasbank_trades_executed_total",
		Help: "Total number of trades executed",
	},
	[]string{"symbol"},
)

// RiskReportsComputed counts portfolio risk report computations.
var RiskReportsComputed = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "atlasbank_risk_reports_computed_total",
		Help: "Total number of portfolio risk reports computed",
	},
)

// Database connection pool metrics
var (
	DBOpenConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "atlasbank_db_open_connections",
			Help: "Number of open connections in the DB pool",
		},
		[]string{"db"},
	)

	DBIdleConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "atlasbank_db_idle_connections",
			Help: "Number of idle connections in the DB pool",
		},
		[]string{"db"},
	)

	DBInUseConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "atlasbank_db_in_use_connections",
			Help: "Number of in-use connections in the DB pool",
		},
		[]string{"db"},
	)
)

func init() {
	prometheus.MustRegister(OrdersPlaced, OrdersRejected, OrderLatency, TradesExecuted, RiskReportsComputed)
	prometheus.MustRegister(DBOpenConns, DBIdleConns, DBInUseConns)
}
