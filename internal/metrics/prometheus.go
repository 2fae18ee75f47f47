package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "healthrag"

type promMetrics struct {
	stageDuration *prometheus.HistogramVec
	stageErrors   *prometheus.CounterVec
	runs          *prometheus.CounterVec
	tokens        *prometheus.CounterVec
}

// NewPrometheusCollector creates a collector whose recordings are also
// exported through reg. Returns an error if the metrics are already
// registered.
func NewPrometheusCollector(reg prometheus.Registerer) (*Collector, error) {
	p := &promMetrics{
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of pipeline stages and model calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		stageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Failed operations, including absorbed retrieval and persistence faults.",
		}, []string{"operation"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Tokens reported by the model provider.",
		}, []string{"operation", "direction"}),
	}

	for _, c := range []prometheus.Collector{p.stageDuration, p.stageErrors, p.runs, p.tokens} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	c := NewCollector()
	c.prom = p
	return c, nil
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
