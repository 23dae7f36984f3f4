package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes pipeline counters on the Prometheus registry. It satisfies
// the orchestrator's Recorder interface.
type Metrics struct {
	itemsTotal  *prometheus.CounterVec
	jobsTotal   *prometheus.CounterVec
	jobDuration prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		itemsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_items_total",
				Help: "Items processed, by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		jobsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_jobs_total",
				Help: "Harvest jobs finished, by status",
			},
			[]string{"status"},
		),
		jobDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvester_job_duration_seconds",
				Help:    "Wall time of one harvest job",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
	}
}

func (m *Metrics) ObserveItem(sourceID, outcome string) {
	m.itemsTotal.WithLabelValues(sourceID, outcome).Inc()
}

func (m *Metrics) ObserveJob(status string, duration time.Duration) {
	m.jobsTotal.WithLabelValues(status).Inc()
	m.jobDuration.Observe(duration.Seconds())
}
