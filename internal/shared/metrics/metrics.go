package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	analysisStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "analysis_started_total",
		Help: "Total analyses started",
	}, []string{"mode"})

	analysisCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "analysis_completed_total",
		Help: "Total analyses completed",
	}, []string{"mode"})

	analysisFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "analysis_failed_total",
		Help: "Total analyses failed by stage",
	}, []string{"mode", "stage"})

	analysisDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "analysis_duration_ms",
		Help:    "Analysis duration in milliseconds",
		Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000},
	}, []string{"mode"})

	envelopeFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "envelope_failures_total",
		Help: "Envelope decrypt/encrypt failures",
	}, []string{"direction"})

	paymentsVerified = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_verified_total",
		Help: "Payment verifications by resulting status",
	}, []string{"status"})
)

func init() {
	registry.MustRegister(
		analysisStarted,
		analysisCompleted,
		analysisFailed,
		analysisDuration,
		envelopeFailures,
		paymentsVerified,
		collectors.NewGoCollector(),
	)
}

// Registry exposes the process registry for tests.
func Registry() *prometheus.Registry {
	return registry
}

// IncAnalysisStarted increments the started counter.
func IncAnalysisStarted(mode string) {
	analysisStarted.WithLabelValues(mode).Inc()
}

// IncAnalysisCompleted increments the completed counter.
func IncAnalysisCompleted(mode string) {
	analysisCompleted.WithLabelValues(mode).Inc()
}

// IncAnalysisFailed increments the failed counter for the stage that failed.
func IncAnalysisFailed(mode, stage string) {
	analysisFailed.WithLabelValues(mode, stage).Inc()
}

// ObserveAnalysisDurationMs records an analysis duration in milliseconds.
func ObserveAnalysisDurationMs(mode string, value float64) {
	if value < 0 {
		value = 0
	}
	analysisDuration.WithLabelValues(mode).Observe(value)
}

// IncEnvelopeFailure counts a failed envelope transform ("request" or "response").
func IncEnvelopeFailure(direction string) {
	envelopeFailures.WithLabelValues(direction).Inc()
}

// IncPaymentVerified counts a payment verification result.
func IncPaymentVerified(status string) {
	paymentsVerified.WithLabelValues(status).Inc()
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
