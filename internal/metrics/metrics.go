package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "collector"

var (
	// Submission outcomes
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Total number of event submissions by outcome",
		},
		[]string{"outcome"}, // ok, missing_headers, bad_signature, invalid_batch, store_error
	)

	submissionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submission_duration_seconds",
			Help:      "Submission processing duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"outcome"},
	)

	artifactsSavedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_saved_total",
			Help:      "Total number of artifacts persisted to both stores",
		},
	)

	artifactsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_failed_total",
			Help:      "Total number of artifacts whose record or blob write failed",
		},
		[]string{"video"},
	)

	// Items that were persisted inside a batch answered with an error.
	orphanedArtifactsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphaned_artifacts_total",
			Help:      "Artifacts persisted in batches whose response reported an error",
		},
	)

	supportersCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "supporters_created_total",
			Help:      "Total number of newly registered supporters",
		},
	)

	alarmsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alarms_total",
			Help:      "Total number of alarms by delivery result",
		},
		[]string{"result"}, // delivered, failed
	)

	versionUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "version_updates_total",
			Help:      "Supporter version updates by result",
		},
		[]string{"result"}, // written, dropped, failed
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordSubmission records a processed submission
func RecordSubmission(outcome string, d time.Duration) {
	submissionsTotal.WithLabelValues(outcome).Inc()
	submissionDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordArtifactSaved records one artifact written to both stores
func RecordArtifactSaved() {
	artifactsSavedTotal.Inc()
}

// RecordArtifactFailed records a failed artifact write
func RecordArtifactFailed(isVideo bool) {
	label := "false"
	if isVideo {
		label = "true"
	}
	artifactsFailedTotal.WithLabelValues(label).Inc()
}

// RecordOrphanedArtifacts records persisted items of a failed batch
func RecordOrphanedArtifacts(n int) {
	orphanedArtifactsTotal.Add(float64(n))
}

// RecordSupporterCreated records a new supporter registration
func RecordSupporterCreated() {
	supportersCreatedTotal.Inc()
}

// RecordAlarm records an alarm delivery attempt
func RecordAlarm(delivered bool) {
	if delivered {
		alarmsTotal.WithLabelValues("delivered").Inc()
		return
	}
	alarmsTotal.WithLabelValues("failed").Inc()
}

// RecordVersionUpdates records the result of persisting version updates
func RecordVersionUpdates(result string, n int) {
	versionUpdatesTotal.WithLabelValues(result).Add(float64(n))
}

// RecordHTTPRequest records a served HTTP request
func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler returns the Prometheus metrics handler
func Handler() http.Handler {
	return promhttp.Handler()
}
