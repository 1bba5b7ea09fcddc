//nolint:testpackage // requires internal access to unexported types and functions
package monitoring

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances by step on every reading.
func fakeClock(step time.Duration) func() time.Time {
	current := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		current = current.Add(step)
		return current
	}
}

func TestMetricsCollector(t *testing.T) {
	t.Run("create disabled collector", func(t *testing.T) {
		collector := NewMetricsCollector(false)
		assert.NotNil(t, collector)
		assert.False(t, collector.IsEnabled())
		assert.Empty(t, collector.GetMetrics())
	})

	t.Run("record operation with disabled collector", func(t *testing.T) {
		collector := NewMetricsCollector(false)

		callCount := 0
		err := collector.RecordOperation("clean", func() (int64, error) {
			callCount++
			return 10, nil
		})

		require.NoError(t, err)
		assert.Equal(t, 1, callCount)
		assert.Empty(t, collector.GetMetrics())
	})

	t.Run("record operation with enabled collector", func(t *testing.T) {
		collector := NewMetricsCollector(true)
		collector.now = fakeClock(5 * time.Millisecond)

		err := collector.RecordOperation("aggregate", func() (int64, error) {
			return 1200, nil
		})
		require.NoError(t, err)

		metrics := collector.GetMetrics()
		require.Len(t, metrics, 1)

		metric := metrics[0]
		assert.Equal(t, "aggregate", metric.Operation)
		assert.Equal(t, 5*time.Millisecond, metric.Duration)
		assert.Equal(t, int64(1200), metric.RowsProcessed)
		assert.GreaterOrEqual(t, metric.MemoryUsed, int64(0))
		assert.Empty(t, metric.Error)
	})

	t.Run("record multiple operations", func(t *testing.T) {
		collector := NewMetricsCollector(true)

		operations := []string{"load", "clean", "segment"}
		for _, op := range operations {
			err := collector.RecordOperation(op, func() (int64, error) { return 1, nil })
			require.NoError(t, err)
		}

		metrics := collector.GetMetrics()
		require.Len(t, metrics, 3)
		for i, op := range operations {
			assert.Equal(t, op, metrics[i].Operation)
		}
	})

	t.Run("handle operation error", func(t *testing.T) {
		collector := NewMetricsCollector(true)

		err := collector.RecordOperation("load", func() (int64, error) {
			return 0, assert.AnError
		})
		assert.Equal(t, assert.AnError, err)

		// Should still record metrics even on error
		metrics := collector.GetMetrics()
		require.Len(t, metrics, 1)
		assert.Equal(t, assert.AnError.Error(), metrics[0].Error)
	})

	t.Run("clear metrics", func(t *testing.T) {
		collector := NewMetricsCollector(true)

		err := collector.RecordOperation("load", func() (int64, error) { return 0, nil })
		require.NoError(t, err)
		assert.Len(t, collector.GetMetrics(), 1)

		collector.Clear()
		assert.Empty(t, collector.GetMetrics())
	})

	t.Run("toggle collection", func(t *testing.T) {
		collector := NewMetricsCollector(true)
		collector.SetEnabled(false)
		assert.False(t, collector.IsEnabled())
	})
}

func TestMetricsCollector_GetSummary(t *testing.T) {
	collector := NewMetricsCollector(true)
	assert.Equal(t, MetricsSummary{}, collector.GetSummary())

	collector.now = fakeClock(10 * time.Millisecond)
	require.NoError(t, collector.RecordOperation("load", func() (int64, error) { return 100, nil }))
	require.NoError(t, collector.RecordOperation("clean", func() (int64, error) { return 90, nil }))
	require.Error(t, collector.RecordOperation("clean", func() (int64, error) { return 0, assert.AnError }))

	summary := collector.GetSummary()
	assert.Equal(t, 3, summary.TotalOperations)
	assert.Equal(t, 1, summary.FailedOperations)
	assert.Equal(t, int64(190), summary.TotalRows)
	assert.Equal(t, 30*time.Millisecond, summary.TotalDuration)
	assert.Equal(t, 10*time.Millisecond, summary.AverageDuration)
	assert.Equal(t, map[string]int{"load": 1, "clean": 2}, summary.OperationCounts)
}

func TestMetricsCollectorConcurrency(t *testing.T) {
	collector := NewMetricsCollector(true)

	numOps := 10
	var wg sync.WaitGroup
	for range numOps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := collector.RecordOperation("concurrent_op", func() (int64, error) { return 1, nil })
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	metrics := collector.GetMetrics()
	assert.Len(t, metrics, numOps)
	for _, metric := range metrics {
		assert.Equal(t, "concurrent_op", metric.Operation)
	}
}
