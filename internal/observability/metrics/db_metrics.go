package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "subscriptions_stored",
			Help: "Subscription records in the store",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM subscriptions")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "gateways_offline",
			Help: "Monitored (user, gateway) pairs currently offline",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM monitored_states WHERE status = 'offline'")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
