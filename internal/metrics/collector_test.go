package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorSnapshot(t *testing.T) {
	c := NewCollector()

	c.RecordTiming(OpIntake, 2*time.Millisecond)
	c.RecordTiming(OpIntake, 4*time.Millisecond)
	c.RecordError(OpRetrieval)
	c.RecordLLMUsage(OpLLMGenerate, 10*time.Millisecond, 100, 40)
	c.RecordRun(true)
	c.RecordRun(false)

	snap := c.Snapshot()
	require.NotNil(t, snap.Intake)
	assert.Equal(t, int64(2), snap.Intake.Count)
	assert.Equal(t, int64(2), snap.Intake.MinTimeMs)
	assert.Equal(t, int64(4), snap.Intake.MaxTimeMs)
	assert.InDelta(t, 3.0, snap.Intake.AvgTimeMs, 0.001)

	require.NotNil(t, snap.Retrieval, "error-only operations still appear")
	assert.Equal(t, int64(1), snap.Retrieval.Errors)
	assert.Zero(t, snap.Retrieval.Count)

	require.NotNil(t, snap.LLMGenerate)
	require.NotNil(t, snap.LLMGenerate.TotalInputTokens)
	assert.Equal(t, int64(100), *snap.LLMGenerate.TotalInputTokens)

	assert.Nil(t, snap.Output)
	assert.Equal(t, int64(2), snap.Runs)
	assert.Equal(t, int64(1), snap.FailedRuns)
}

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	c.RecordTiming(OpStructuring, time.Millisecond)
	c.RecordError(OpPersistence)
	c.RecordRun(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.prom.stageErrors.WithLabelValues(OpPersistence)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.prom.runs.WithLabelValues("success")))

	_, err = NewPrometheusCollector(reg)
	assert.Error(t, err, "double registration fails")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthrag_pipeline_runs_total")
	assert.Contains(t, rec.Body.String(), `healthrag_operation_duration_seconds_count{operation="structuring"} 1`)
}
