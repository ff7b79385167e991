package raceengine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strategyd_requests_total",
		Help: "Requests served, by operation and outcome.",
	}, []string{"operation", "outcome"})

	rejectedRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "strategyd_rejected_lap_records_total",
		Help: "Raw lap records rejected as malformed.",
	})

	fuelAnomalies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "strategyd_fuel_anomalies_total",
		Help: "Laps whose fuel load increased within a stint.",
	})

	cacheLookups = promauto.NewCounter(prometheus.CounterOpts{
		Name: "strategyd_model_cache_lookups_total",
		Help: "Model cache lookups.",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "strategyd_model_cache_misses_total",
		Help: "Model cache lookups which found no artifact.",
	})
)
