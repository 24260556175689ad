package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "housefly_refresh_total",
			Help: "Total refresh pipeline runs",
		},
		[]string{"status"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "housefly_stage_duration_seconds",
			Help:    "Refresh pipeline stage duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"stage"},
	)

	RecordsCollected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "housefly_records_collected_total",
			Help: "New raw records persisted per signal source",
		},
		[]string{"source"},
	)

	RecordsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "housefly_records_skipped_total",
			Help: "Fetched records skipped (duplicate, malformed, or missing id)",
		},
		[]string{"source"},
	)

	ProfitabilityScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "housefly_profitability_score",
			Help: "Latest composite profitability score per neighborhood",
		},
		[]string{"neighborhood"},
	)

	NeighborhoodsScored = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "housefly_neighborhoods_scored",
			Help: "Neighborhoods written in the last aggregation run",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "housefly_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "housefly_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)
)

func Init() {
	prometheus.MustRegister(RefreshTotal)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(RecordsCollected)
	prometheus.MustRegister(RecordsSkipped)
	prometheus.MustRegister(ProfitabilityScore)
	prometheus.MustRegister(NeighborhoodsScored)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
