package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordBatch(t *testing.T) {
	RecordBatchRun("cli", "ok", 2*time.Second)
	RecordCroppingsCreated(3)
	RecordCroppingsCreated(0)
	RecordReferenceSkipped("unresolvable_dimensions")
}

func TestRecordRenderAndProcessing(t *testing.T) {
	RecordRenderPlan("miss", 20*time.Millisecond)
	RecordRenderPlan("hit", time.Millisecond)
	RecordProcessJobPublished()
	RecordMessageConsumed("crop-service.references", "ack")
}

func TestMetricsHandler(t *testing.T) {
	RecordProcessJobPublished()

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "crop_process_jobs_published_total"))
}
