package tokengate

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMetricsDisabledIsNoOp(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})

	m.Inc(MetricLoginSuccess)
	require.EqualValues(t, 0, m.Value(MetricLoginSuccess))

	snap := m.Snapshot()
	require.Empty(t, snap.Counters)
	require.Empty(t, snap.Histograms)
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricRefreshFailure)

	require.EqualValues(t, 2, m.Value(MetricLoginSuccess))
	require.EqualValues(t, 1, m.Value(MetricRefreshFailure))
	require.EqualValues(t, 0, m.Value(MetricLogout))

	snap := m.Snapshot()
	require.EqualValues(t, 2, snap.Counters[MetricLoginSuccess])
}

func TestMetricsConcurrentInc(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 8
	const perGoroutine = 1000

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				m.Inc(MetricRefreshSuccess)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, goroutines*perGoroutine, m.Value(MetricRefreshSuccess))
}

func TestMetricsLatencyHistogram(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	m.Observe(MetricAuthenticateLatency, 2*time.Millisecond)
	m.Observe(MetricAuthenticateLatency, 30*time.Millisecond)
	m.Observe(MetricAuthenticateLatency, time.Second)

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricAuthenticateLatency]
	require.Len(t, buckets, histBucketCount)
	require.EqualValues(t, 1, buckets[0])
	require.EqualValues(t, 1, buckets[3])
	require.EqualValues(t, 1, buckets[7])
}

func TestMetricsLatencyDisabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Observe(MetricAuthenticateLatency, time.Millisecond)

	snap := m.Snapshot()
	require.Empty(t, snap.Histograms)
}

func TestBucketIndexBoundaries(t *testing.T) {
	cases := []struct {
		d      time.Duration
		bucket int
	}{
		{time.Millisecond, 0},
		{5 * time.Millisecond, 0},
		{6 * time.Millisecond, 1},
		{25 * time.Millisecond, 2},
		{50 * time.Millisecond, 3},
		{100 * time.Millisecond, 4},
		{250 * time.Millisecond, 5},
		{500 * time.Millisecond, 6},
		{time.Minute, 7},
	}

	for _, tc := range cases {
		require.Equal(t, tc.bucket, bucketIndex(tc.d), "duration %v", tc.d)
	}
}
