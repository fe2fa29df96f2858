package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WarehouseQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bq_insights_warehouse_queries_total",
			Help: "Warehouse statements executed, by region candidate and outcome",
		},
		[]string{"region", "status"},
	)

	ViewDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bq_insights_view_duration_seconds",
			Help:    "Dashboard view composition duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"view"},
	)

	ViewDegraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bq_insights_view_degraded_total",
			Help: "Views composed with an empty substitute for a failed sub-query",
		},
		[]string{"view"},
	)

	OptimizeSessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bq_insights_optimize_sessions_total",
			Help: "Optimization sessions by terminal outcome",
		},
		[]string{"status"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bq_insights_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	RateLimitRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bq_insights_ratelimit_rejections_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)

func Init() {
	prometheus.MustRegister(WarehouseQueries)
	prometheus.MustRegister(ViewDuration)
	prometheus.MustRegister(ViewDegraded)
	prometheus.MustRegister(OptimizeSessions)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(RateLimitRejections)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
