// Package metrics provides Prometheus metrics for thumbnail generation and sync passes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Thumbnail metrics
	thumbnailLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comicshelf_thumbnail_lookups_total",
			Help: "Thumbnail cache lookups by result (hit, miss, corrupt)",
		},
		[]string{"result"},
	)

	thumbnailFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comicshelf_thumbnail_failures_total",
			Help: "Thumbnail generations that produced no image, by reason",
		},
		[]string{"reason"},
	)

	thumbnailDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "comicshelf_thumbnail_generate_duration_seconds",
			Help:    "Time to extract, decode, resize and persist one thumbnail",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Sync metrics
	syncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comicshelf_sync_runs_total",
			Help: "Sync passes by provider and status",
		},
		[]string{"provider", "status"},
	)

	syncFiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comicshelf_sync_files_total",
			Help: "Files handled by sync passes, by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	syncBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comicshelf_sync_bytes_downloaded_total",
			Help: "Bytes written into the library by sync passes",
		},
		[]string{"provider"},
	)

	syncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "comicshelf_sync_duration_seconds",
			Help:    "Wall time of a sync pass",
			Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600},
		},
		[]string{"provider"},
	)

	providerCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comicshelf_provider_calls_total",
			Help: "Provider API calls by provider, operation and status",
		},
		[]string{"provider", "operation", "status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordThumbnailLookup records a cache lookup result: "hit", "miss" or "corrupt".
func RecordThumbnailLookup(result string) {
	thumbnailLookups.WithLabelValues(result).Inc()
}

// RecordThumbnailFailure records a generation that ended without an image.
func RecordThumbnailFailure(reason string) {
	thumbnailFailures.WithLabelValues(reason).Inc()
}

// RecordThumbnailGenerated records the duration of a successful generation.
func RecordThumbnailGenerated(duration time.Duration) {
	thumbnailDuration.Observe(duration.Seconds())
}

// RecordSyncRun records a finished pass.
func RecordSyncRun(provider, status string, duration time.Duration) {
	syncRuns.WithLabelValues(provider, status).Inc()
	syncDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordSyncFile records one file decision: "downloaded", "skipped" or "failed".
func RecordSyncFile(provider, outcome string) {
	syncFiles.WithLabelValues(provider, outcome).Inc()
}

// RecordSyncBytes adds downloaded bytes.
func RecordSyncBytes(provider string, n int64) {
	if n > 0 {
		syncBytes.WithLabelValues(provider).Add(float64(n))
	}
}

// RecordProviderCall records a provider API call.
func RecordProviderCall(provider, operation string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	providerCalls.WithLabelValues(provider, operation, status).Inc()
}
