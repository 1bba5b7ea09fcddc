package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandler(t *testing.T) {
	collector := NewMetricsCollector(true)
	require.NoError(t, collector.RecordOperation("load", func() (int64, error) { return 42, nil }))

	rec := httptest.NewRecorder()
	MetricsHandler(collector)(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body metricsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Enabled)
	assert.Equal(t, 1, body.Summary.TotalOperations)
	require.Len(t, body.Operations, 1)
	assert.Equal(t, "load", body.Operations[0].Operation)
	assert.Equal(t, int64(42), body.Operations[0].RowsProcessed)
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthHandler(NewMetricsCollector(false))(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["metrics"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestDashboardHandler(t *testing.T) {
	collector := NewMetricsCollector(true)
	require.NoError(t, collector.RecordOperation("segment", func() (int64, error) { return 7, nil }))
	_ = collector.RecordOperation("<sample>", func() (int64, error) { return 0, assert.AnError })

	rec := httptest.NewRecorder()
	DashboardHandler(collector)(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<td>segment</td>")
	assert.Contains(t, body, "(1 failed)")
	assert.Contains(t, body, "&lt;sample&gt;")
}
