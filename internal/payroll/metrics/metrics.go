// Package metrics exposes Prometheus instruments for the payroll service.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type PayrollMetrics struct {
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	transfers         prometheus.Counter
	transferredUnits  prometheus.Counter
	eventsDropped     *prometheus.CounterVec
}

var (
	payrollOnce     sync.Once
	payrollRegistry *PayrollMetrics
)

// Payroll returns the process-wide payroll metrics, registering them on first use.
func Payroll() *PayrollMetrics {
	payrollOnce.Do(func() {
		payrollRegistry = &PayrollMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "payroll_operations_total",
				Help: "Payroll operations by name and result code.",
			}, []string{"operation", "result"}),
			operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "payroll_operation_duration_seconds",
				Help:    "Latency of payroll operations.",
				Buckets: prometheus.DefBuckets,
			}, []string{"operation"}),
			transfers: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "payroll_treasury_transfers_total",
				Help: "Committed treasury to employee transfers.",
			}),
			transferredUnits: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "payroll_treasury_transferred_units_total",
				Help: "Token base units moved out of company treasuries.",
			}),
			eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "payroll_events_dropped_total",
				Help: "Events dropped because the producer queue was full.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(
			payrollRegistry.operations,
			payrollRegistry.operationDuration,
			payrollRegistry.transfers,
			payrollRegistry.transferredUnits,
			payrollRegistry.eventsDropped,
		)
	})
	return payrollRegistry
}

// ObserveOperation records one finished operation. result is "ok" or an error code.
func (m *PayrollMetrics) ObserveOperation(operation, result string, started time.Time) {
	if m == nil {
		return
	}
	if result == "" {
		result = "ok"
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// ObserveTransfer records a committed transfer of amount units.
func (m *PayrollMetrics) ObserveTransfer(amount uint64) {
	if m == nil {
		return
	}
	m.transfers.Inc()
	m.transferredUnits.Add(float64(amount))
}

// ObserveEventDropped records an event lost to a full queue.
func (m *PayrollMetrics) ObserveEventDropped(eventType string) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(eventType).Inc()
}
