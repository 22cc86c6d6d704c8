package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordSubmission(t *testing.T) {
	before := testutil.ToFloat64(submissionsTotal.WithLabelValues("ok"))
	RecordSubmission("ok", 10*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(submissionsTotal.WithLabelValues("ok")))
}

func TestRecordArtifactFailed(t *testing.T) {
	before := testutil.ToFloat64(artifactsFailedTotal.WithLabelValues("true"))
	RecordArtifactFailed(true)
	assert.Equal(t, before+1, testutil.ToFloat64(artifactsFailedTotal.WithLabelValues("true")))
}

func TestRecordAlarm(t *testing.T) {
	delivered := testutil.ToFloat64(alarmsTotal.WithLabelValues("delivered"))
	failed := testutil.ToFloat64(alarmsTotal.WithLabelValues("failed"))
	RecordAlarm(true)
	RecordAlarm(false)
	RecordAlarm(false)
	assert.Equal(t, delivered+1, testutil.ToFloat64(alarmsTotal.WithLabelValues("delivered")))
	assert.Equal(t, failed+2, testutil.ToFloat64(alarmsTotal.WithLabelValues("failed")))
}

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/api/v2/events", "200"))
	RecordHTTPRequest("POST", "/api/v2/events", 200, time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/api/v2/events", "200")))
}
