package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "meridian_chain"

// 结算与事件接入指标
var (
	CashbacksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cashbacks_processed_total",
		Help:      "Processed cashback settlements by network and result",
	}, []string{"network", "result"})

	CashbacksRetried = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cashbacks_retried_total",
		Help:      "Cashback settlement retries by network",
	}, []string{"network"})

	CashbacksCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cashbacks_cancelled_total",
		Help:      "Cashbacks cancelled by expiry sweep",
	})

	SettlementDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "settlement_duration_seconds",
		Help:      "End to end settlement latency including confirmation wait",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
	}, []string{"network"})

	GasFeeSpent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gas_fee_native_total",
		Help:      "Cumulative gas fees in native units by network",
	}, []string{"network"})

	TxBroadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tx_broadcasts_total",
		Help:      "Broadcast transactions by network and kind",
	}, []string{"network", "kind"})

	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_ingested_total",
		Help:      "Ingested chain events by source and outcome",
	}, []string{"source", "outcome"})

	EventsUnprocessed = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "events_unprocessed",
		Help:      "Events awaiting processing",
	})

	RPCErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rpc_errors_total",
		Help:      "Chain RPC failures by network",
	}, []string{"network"})

	NetworkUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "network_up",
		Help:      "Health check result per network, 1 healthy",
	}, []string{"network"})
)
