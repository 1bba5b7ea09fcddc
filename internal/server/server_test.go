package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/paveg/olist-eda/internal/mapview"
	"github.com/paveg/olist-eda/internal/model"
	"github.com/paveg/olist-eda/internal/monitoring"
	"github.com/paveg/olist-eda/internal/server"
	"github.com/paveg/olist-eda/internal/table"
	"github.com/paveg/olist-eda/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResult() *model.Result {
	customers := testutil.TieredSpend(3, 2, 1)
	return &model.Result{
		Products: table.From([]model.ProductPopularity{
			{ProductID: "p1", Count: 3, AvgPrice: 20, CategoryNameEnglish: model.Some("toys")},
			{ProductID: "p2", Count: 2, AvgPrice: 15},
			{ProductID: "p3", Count: 1, AvgPrice: 100},
		}),
		Customers: customers,
		Sample:    customers,
		Growth: table.From([]model.MonthlyGrowth{
			{Month: "2017-01", CustomerType: model.CustomerNew, TotalSpent: 60, TotalOrder: 2},
		}),
		Diagnostics: model.Diagnostics{
			Lags:     model.DeliveryLags{CarrierDays: 2, CustomerDays: 7},
			Warnings: []string{"order_items.product_id -> products: 1 unmatched product_id"},
		},
	}
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestServer_Tables(t *testing.T) {
	h := server.New(testResult()).Handler()

	tests := []struct {
		target string
		rows   int
	}{
		{"/api/products", 3},
		{"/api/products?limit=2", 2},
		{"/api/products?limit=0", 3},
		{"/api/products?limit=10", 3},
		{"/api/customers", 6},
		{"/api/customers/sample?limit=1", 1},
		{"/api/categories", 0},
		{"/api/regions", 0},
		{"/api/orders/daily", 0},
		{"/api/growth", 1},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := get(t, h, tt.target)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var rows []map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
			assert.Len(t, rows, tt.rows)
		})
	}
}

func TestServer_ProductFields(t *testing.T) {
	rec := get(t, server.New(testResult()).Handler(), "/api/products?limit=2")

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "p1", rows[0]["product_id"])
	assert.Equal(t, "toys", rows[0]["product_category_name_english"])
	assert.Nil(t, rows[1]["product_category_name_english"])
}

func TestServer_InvalidLimit(t *testing.T) {
	h := server.New(testResult()).Handler()
	for _, target := range []string{"/api/products?limit=-1", "/api/growth?limit=ten"} {
		rec := get(t, h, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "limit must be a non-negative integer")
	}
}

func TestServer_Map(t *testing.T) {
	s := server.New(testResult())
	h := s.Handler()

	rec := get(t, h, "/api/map")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))

	var body struct {
		Type     string           `json:"type"`
		Features []map[string]any `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "FeatureCollection", body.Type)
	assert.Len(t, body.Features, 6)
}

func TestServer_MapBuiltOnce(t *testing.T) {
	builds := 0
	result := testResult()
	cache := mapview.NewCache(func() (*mapview.Map, error) {
		builds++
		return mapview.Build(result.Sample)
	})
	h := server.New(result, server.WithMapCache(cache)).Handler()

	built, err := cache.Get()
	require.NoError(t, err)
	before, err := built.GeoJSON()
	require.NoError(t, err)

	for range 3 {
		rec := get(t, h, "/api/map")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, string(before), rec.Body.String())
	}
	assert.Equal(t, 1, builds)

	// Serving never mutates the shared map
	after, err := cache.Get()
	require.NoError(t, err)
	assert.Same(t, built, after)
	assert.Equal(t, 6, after.MarkerCount())
	encoded, err := after.GeoJSON()
	require.NoError(t, err)
	assert.Equal(t, before, encoded)
}

func TestServer_MapWithoutLocatedCustomers(t *testing.T) {
	result := testResult()
	result.Sample = table.Table[model.CustomerSpend]{}

	rec := get(t, server.New(result).Handler(), "/api/map")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Diagnostics(t *testing.T) {
	rec := get(t, server.New(testResult()).Handler(), "/api/diagnostics")
	require.Equal(t, http.StatusOK, rec.Code)

	var diag model.Diagnostics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &diag))
	assert.Equal(t, model.DeliveryLags{CarrierDays: 2, CustomerDays: 7}, diag.Lags)
	assert.Len(t, diag.Warnings, 1)
}

func TestServer_Monitoring(t *testing.T) {
	collector := monitoring.NewMetricsCollector(true)
	require.NoError(t, collector.RecordOperation("clean", func() (int64, error) { return 4, nil }))
	h := server.New(testResult(), server.WithMetrics(collector)).Handler()

	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"operation":"clean"`)

	rec = get(t, h, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestServer_Routing(t *testing.T) {
	h := server.New(testResult()).Handler()

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/sellers").Code)

	for _, path := range []string{"/api/products", "/api/customers/sample", "/api/map", "/health"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sellers", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/products", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
