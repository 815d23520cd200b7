package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	JobsTotal          *prometheus.CounterVec
	SegmentsGenerated  prometheus.Counter
	SegmentFailures    prometheus.Counter
	GenerationDuration prometheus.Histogram
	QueuedJobs         prometheus.Gauge
	PreviewListeners   prometheus.Gauge
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		JobsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Generation jobs by outcome.",
		}, []string{"outcome"}),
		SegmentsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_generated_total",
			Help:      "Audio segments synthesized across all jobs.",
		}),
		SegmentFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segment_failures_total",
			Help:      "Segment generation failures.",
		}),
		GenerationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Wall-clock duration of completed generation jobs.",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		QueuedJobs: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queued_jobs",
			Help:      "Jobs waiting for the generation worker.",
		}),
		PreviewListeners: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "preview_listeners",
			Help:      "Connected preview stream listeners.",
		}),
	}
}

// MetricsHandler serves the Prometheus scrape endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
