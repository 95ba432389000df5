package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the dashboard service.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	DatasetRecords  prometheus.Gauge
	AnomalyRuns     prometheus.Counter
	InsightRuns     prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salesdash",
			Name:      "http_requests_total",
			Help:      "Number of HTTP requests by path and status code.",
		}, []string{"path", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "salesdash",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by path.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),
		DatasetRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "salesdash",
			Name:      "dataset_records",
			Help:      "Number of sales records in the current table snapshot.",
		}),
		AnomalyRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "salesdash",
			Name:      "anomaly_detection_runs_total",
			Help:      "Number of anomaly detection model fits.",
		}),
		InsightRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "salesdash",
			Name:      "insight_generation_runs_total",
			Help:      "Number of insight generation passes.",
		}),
	}

	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.DatasetRecords,
		m.AnomalyRuns,
		m.InsightRuns,
	)
	return m
}

// Handler serves the /metrics endpoint from this registry only.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
