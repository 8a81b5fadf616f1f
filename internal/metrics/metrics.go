// Package metrics exposes operational counters over Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter holds every instrument the pipeline reports into.
type Exporter struct {
	registry *prometheus.Registry

	ReportsCollected  *prometheus.CounterVec // by source
	ReportsProcessed  *prometheus.CounterVec // by outcome
	QueueDepth        prometheus.Gauge
	CorrelationCycles prometheus.Counter
	CycleDuration     prometheus.Histogram
	ClustersActive    prometheus.Gauge
	Notifications     *prometheus.CounterVec // by kind
	ReportsExpired    prometheus.Counter
}

// New builds and registers every instrument on a private registry.
func New() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		ReportsCollected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sightwatch_reports_collected_total",
			Help: "Raw reports fetched from each source.",
		}, []string{"source"}),
		ReportsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sightwatch_reports_processed_total",
			Help: "Pipeline outcomes for processed reports.",
		}, []string{"outcome"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sightwatch_ingest_queue_depth",
			Help: "Raw reports waiting in the ingestion queue.",
		}),
		CorrelationCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sightwatch_correlation_cycles_total",
			Help: "Completed correlation cycles.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sightwatch_correlation_cycle_seconds",
			Help:    "Wall time of one correlation cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		ClustersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sightwatch_clusters_active",
			Help: "Clusters within the activity horizon after the last cycle.",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sightwatch_notifications_total",
			Help: "Incident notifications sent, by kind.",
		}, []string{"kind"}),
		ReportsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sightwatch_reports_expired_total",
			Help: "Reports aged out of the correlation pool.",
		}),
	}

	e.registry.MustRegister(
		e.ReportsCollected,
		e.ReportsProcessed,
		e.QueueDepth,
		e.CorrelationCycles,
		e.CycleDuration,
		e.ClustersActive,
		e.Notifications,
		e.ReportsExpired,
	)
	return e
}

// Handler returns the /metrics HTTP handler.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
