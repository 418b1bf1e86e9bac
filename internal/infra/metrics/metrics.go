// Package metrics holds the ledger's Prometheus instruments. A nil *Ledger
// is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "casino_ledger"

type Ledger struct {
	operations    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	retries       *prometheus.CounterVec
	cache         *prometheus.CounterVec
	busEvents     *prometheus.CounterVec
	compensations *prometheus.CounterVec
	prunedRecords prometheus.Counter
	outboxDropped prometheus.Counter
}

// New registers the instruments on reg. Pass prometheus.DefaultRegisterer
// in binaries and prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Ledger {
	m := &Ledger{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Ledger operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Ledger operation latency including lock wait and retries.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"op"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Store retries by cause (conflict, transient).",
		}, []string{"cause"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Balance cache lookups by result.",
		}, []string{"result"}),
		busEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_events_total",
			Help:      "Bus events by direction and result.",
		}, []string{"direction", "result"}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_compensations_total",
			Help:      "Compensating credits after a failed transfer leg.",
		}, []string{"result"}),
		prunedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pruned_records_total",
			Help:      "Transaction records removed by retention.",
		}),
		outboxDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_dropped_total",
			Help:      "Bus events dropped because the outbox was full.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.operations, m.duration, m.retries, m.cache,
			m.busEvents, m.compensations, m.prunedRecords, m.outboxDropped,
		)
	}

	return m
}

func (m *Ledger) Operation(op, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

func (m *Ledger) Retry(cause string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(cause).Inc()
}

func (m *Ledger) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cache.WithLabelValues(result).Inc()
}

func (m *Ledger) BusEvent(direction, result string) {
	if m == nil {
		return
	}
	m.busEvents.WithLabelValues(direction, result).Inc()
}

func (m *Ledger) Compensation(ok bool) {
	if m == nil {
		return
	}
	result := "failed"
	if ok {
		result = "ok"
	}
	m.compensations.WithLabelValues(result).Inc()
}

func (m *Ledger) Pruned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.prunedRecords.Add(float64(n))
}

func (m *Ledger) OutboxDropped() {
	if m == nil {
		return
	}
	m.outboxDropped.Inc()
}
