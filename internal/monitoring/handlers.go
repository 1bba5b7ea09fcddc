package monitoring

import (
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/paveg/olist-eda/internal/version"
)

// metricsResponse is the body of the metrics endpoint.
type metricsResponse struct {
	Enabled    bool               `json:"enabled"`
	Summary    MetricsSummary     `json:"summary"`
	Operations []OperationMetrics `json:"operations"`
}

// MetricsHandler serves the collected stage metrics and their summary as JSON.
func MetricsHandler(collector *MetricsCollector) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		response := metricsResponse{
			Enabled:    collector.IsEnabled(),
			Summary:    collector.GetSummary(),
			Operations: collector.GetMetrics(),
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, "Failed to encode metrics", http.StatusInternalServerError)
			return
		}
	}
}

// HealthHandler serves the health check endpoint.
func HealthHandler(collector *MetricsCollector) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		response := map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"metrics":   collector.IsEnabled(),
			"version":   version.Version,
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, "Failed to encode health status", http.StatusInternalServerError)
			return
		}
	}
}

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Olist EDA Pipeline</title>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .summary { background: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0; }
        table { width: 100%; border-collapse: collapse; }
        th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
        th { background-color: #f2f2f2; }
        .failed { color: #721c24; }
    </style>
</head>
<body>
    <h1>Pipeline Stages</h1>
    <div class="summary">
        <p><strong>Stages:</strong> {{.Summary.TotalOperations}} ({{.Summary.FailedOperations}} failed)</p>
        <p><strong>Total Duration:</strong> {{.Summary.TotalDuration}}</p>
        <p><strong>Rows Processed:</strong> {{.Summary.TotalRows}}</p>
    </div>
    <table>
        <thead><tr><th>Stage</th><th>Duration</th><th>Rows</th><th>Allocated</th><th>Error</th></tr></thead>
        <tbody>
        {{- range .Operations}}
            <tr><td>{{.Operation}}</td><td>{{.Duration}}</td><td>{{.RowsProcessed}}</td><td>{{.MemoryUsed}}</td><td class="failed">{{.Error}}</td></tr>
        {{- end}}
        </tbody>
    </table>
</body>
</html>
`))

// DashboardHandler serves a simple HTML view of the stage metrics.
func DashboardHandler(collector *MetricsCollector) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")

		data := metricsResponse{
			Enabled:    collector.IsEnabled(),
			Summary:    collector.GetSummary(),
			Operations: collector.GetMetrics(),
		}
		if err := dashboardTemplate.Execute(w, data); err != nil {
			http.Error(w, "Failed to render dashboard", http.StatusInternalServerError)
			return
		}
	}
}
