package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TranscodeRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcode_runs_total",
		Help: "Transcode runs by final outcome.",
	}, []string{"outcome"})

	RenditionEncodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcode_rendition_encodes_total",
		Help: "Rendition encodes by label and final job status.",
	}, []string{"rendition", "status"})

	RenditionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transcode_rendition_duration_seconds",
		Help:    "Wall-clock time of a single rendition encode.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 2400},
	}, []string{"rendition"})

	CatalogWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcode_catalog_writes_total",
		Help: "Catalog writes after a successful run, by status.",
	}, []string{"status"})

	JobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transcode_jobs_in_flight",
		Help: "Transcode runs currently executing in this process.",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transcode_queue_depth",
		Help: "Jobs waiting in the Redis queue, sampled by the workers.",
	})
)
