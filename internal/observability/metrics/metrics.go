package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "gateway_monitor_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	pollCycles       *prometheus.CounterVec
	pollCycleLatency *prometheus.HistogramVec

	fetchTotal *prometheus.CounterVec

	transitionsTotal   *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec

	activeSubscriptions prometheus.Gauge
)

// Init registers monitoring metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		pollCycles = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "poll_cycles_total",
				Help: "Total poll cycles by result",
			},
			[]string{"result"},
		)
		pollCycleLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "poll_cycle_latency_seconds",
				Help:    "Poll cycle latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		fetchTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "fetch_total",
				Help: "Total telemetry fetches by result or failure kind",
			},
			[]string{"result"},
		)

		transitionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "transitions_total",
				Help: "Total detected state transitions by new status",
			},
			[]string{"status"},
		)
		notificationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Total outbound notification messages by result",
			},
			[]string{"result"},
		)

		activeSubscriptions = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "active_subscriptions",
				Help: "Active subscriptions seen by the last poll cycle",
			},
		)

		prometheus.MustRegister(
			pollCycles,
			pollCycleLatency,
			fetchTotal,
			transitionsTotal,
			notificationsTotal,
			activeSubscriptions,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObservePollCycle records cycle duration and result.
func ObservePollCycle(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if pollCycles != nil {
		pollCycles.WithLabelValues(result).Inc()
	}
	if pollCycleLatency != nil {
		pollCycleLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncFetch increments the fetch counter for a result or failure kind.
func IncFetch(result string) {
	if result == "" {
		result = "unknown"
	}
	if fetchTotal != nil {
		fetchTotal.WithLabelValues(result).Inc()
	}
}

// IncTransition increments the transition counter by new status.
func IncTransition(status string) {
	if status == "" {
		status = "unknown"
	}
	if transitionsTotal != nil {
		transitionsTotal.WithLabelValues(status).Inc()
	}
}

// AddNotifications adds delivered or failed message counts.
func AddNotifications(result string, count int) {
	if count <= 0 {
		return
	}
	if result == "" {
		result = resultSuccess
	}
	if notificationsTotal != nil {
		notificationsTotal.WithLabelValues(result).Add(float64(count))
	}
}

// SetActiveSubscriptions records the subscription snapshot size.
func SetActiveSubscriptions(count int) {
	if count < 0 {
		count = 0
	}
	if activeSubscriptions != nil {
		activeSubscriptions.Set(float64(count))
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
