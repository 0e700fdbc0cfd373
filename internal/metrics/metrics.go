package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Ledger
	TransactionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "iou_transactions_created_total",
			Help: "Total ledger transactions written",
		},
	)
	TransactionsDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "iou_transactions_deleted_total",
			Help: "Total ledger transactions soft-deleted",
		},
	)
	Settlements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iou_settlements_total",
			Help: "Settle calls by outcome",
		},
		[]string{"result"}, // settled|noop
	)
	Splits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "iou_splits_total",
			Help: "Total committed splits",
		},
	)
	LedgerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iou_ledger_failures_total",
			Help: "Failed ledger operations",
		},
		[]string{"op", "kind"},
	)
	EventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "iou_events_dropped_total",
			Help: "Ledger events that could not be published",
		},
	)

	// Worker kuyruğu
	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)

	initOnce sync.Once
)

// /metrics endpoint'i için handler
var Handler = promhttp.Handler

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			TransactionsCreated,
			TransactionsDeleted,
			Settlements,
			Splits,
			LedgerFailures,
			EventsDropped,
			WorkerQueueDepth,
		)
	})
}
