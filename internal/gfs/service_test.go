package gfs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anomalyviz/gfs-anomaly-service/internal/observability"
)

// stubSource returns a canned grid or error and counts its invocations.
type stubSource struct {
	name  string
	grid  Grid
	err   error
	calls int
}

func (s *stubSource) Name() string       { return s.name }
func (s *stubSource) Resolution() string { return "1deg" }

func (s *stubSource) Fetch(ctx context.Context, run time.Time, forecastHour int) (Grid, error) {
	s.calls++
	if s.err != nil {
		return Grid{}, s.err
	}
	return s.grid, nil
}

// mapCache is a trivial ResponseCache for tests.
type mapCache map[string]AnomalyResponse

func (c mapCache) Get(key string) (AnomalyResponse, bool) {
	resp, ok := c[key]
	return resp, ok
}

func (c mapCache) Set(key string, resp AnomalyResponse) { c[key] = resp }

func testService(srcs []Source, cache ResponseCache, metrics *observability.Metrics) *Service {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC))
	return NewService(ServiceConfig{
		Resolver:     NewRunResolver(clock, 3*time.Hour+30*time.Minute, 24*time.Hour),
		Sources:      srcs,
		Synthetic:    NewSyntheticGenerator(Global, 1),
		Cache:        cache,
		Metrics:      metrics,
		FetchTimeout: time.Second,
		MaxFetches:   2,
	})
}

func TestAnomalyDataObservedPath(t *testing.T) {
	src := &stubSource{
		name: "primary",
		grid: uniformGrid([]float64{50, 40}, []float64{0, 10}, 290),
	}
	metrics := observability.NewMetricsForTesting()
	svc := testService([]Source{src}, nil, metrics)

	resp, err := svc.AnomalyData(context.Background(), 6, false)
	require.NoError(t, err)

	assert.False(t, resp.MockData)
	assert.Equal(t, "primary", resp.Source)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FetchAttempts.WithLabelValues("primary", "success")))
	assert.Equal(t, 6, resp.ForecastHour)
	assert.Equal(t, "2026-08-25T06:00:00Z", resp.RunTime)
	assert.Equal(t, "2026-08-25T12:00:00Z", resp.ValidTime)
}

func TestAnomalyDataFallsBackThroughChain(t *testing.T) {
	failing := &stubSource{name: "primary", err: errors.New("connection refused")}
	working := &stubSource{
		name: "archive",
		grid: uniformGrid([]float64{50, 40}, []float64{0, 10}, 288),
	}
	metrics := observability.NewMetricsForTesting()
	svc := testService([]Source{failing, working}, nil, metrics)

	resp, err := svc.AnomalyData(context.Background(), 0, false)
	require.NoError(t, err)

	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, working.calls)
	assert.False(t, resp.MockData)
	assert.Equal(t, "archive", resp.Source)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FetchAttempts.WithLabelValues("primary", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FetchAttempts.WithLabelValues("archive", "success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.SyntheticFallbacks))
}

func TestAnomalyDataSyntheticFallback(t *testing.T) {
	failing := &stubSource{name: "primary", err: errors.New("timeout")}
	alsoFailing := &stubSource{name: "archive", err: errors.New("no such dataset")}
	metrics := observability.NewMetricsForTesting()
	svc := testService([]Source{failing, alsoFailing}, nil, metrics)

	resp, err := svc.AnomalyData(context.Background(), 12, false)
	require.NoError(t, err, "exhausted sources must never surface an error")

	assert.True(t, resp.MockData)
	assert.Equal(t, 12, resp.ForecastHour)
	assert.Len(t, resp.AnomalyData.Lats, 181)
	assert.Len(t, resp.AnomalyData.Lons, 360)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SyntheticFallbacks))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FetchAttempts.WithLabelValues("primary", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FetchAttempts.WithLabelValues("archive", "error")))
}

func TestAnomalyDataUseMockSkipsSources(t *testing.T) {
	src := &stubSource{name: "primary", grid: uniformGrid([]float64{50}, []float64{0}, 290)}
	svc := testService([]Source{src}, nil, observability.NewMetricsForTesting())

	resp, err := svc.AnomalyData(context.Background(), 0, true)
	require.NoError(t, err)

	assert.True(t, resp.MockData)
	assert.Zero(t, src.calls)
}

func TestAnomalyDataForecastHourBounds(t *testing.T) {
	svc := testService(nil, nil, observability.NewMetricsForTesting())

	_, err := svc.AnomalyData(context.Background(), -1, true)
	assert.Error(t, err)

	_, err = svc.AnomalyData(context.Background(), 385, true)
	assert.Error(t, err)

	_, err = svc.AnomalyData(context.Background(), 384, true)
	assert.NoError(t, err)
}

func TestAnomalyDataCaching(t *testing.T) {
	src := &stubSource{
		name: "primary",
		grid: uniformGrid([]float64{50, 40}, []float64{0, 10}, 290),
	}
	cache := mapCache{}
	metrics := observability.NewMetricsForTesting()
	svc := testService([]Source{src}, cache, metrics)

	first, err := svc.AnomalyData(context.Background(), 6, false)
	require.NoError(t, err)
	second, err := svc.AnomalyData(context.Background(), 6, false)
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls, "second request must be served from cache")
	assert.Equal(t, first, second)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("hit")))
}

// TestNewServiceWithoutMetrics ensures a service wired with a nil Metrics
// still serves requests, including the fallback path that touches counters.
func TestNewServiceWithoutMetrics(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC))
	failing := &stubSource{name: "primary", err: errors.New("down")}
	svc := NewService(ServiceConfig{
		Resolver:  NewRunResolver(clock, 3*time.Hour+30*time.Minute, 24*time.Hour),
		Sources:   []Source{failing},
		Synthetic: NewSyntheticGenerator(Global, 1),
		Cache:     mapCache{},
	})

	resp, err := svc.AnomalyData(context.Background(), 0, false)
	require.NoError(t, err)
	assert.True(t, resp.MockData)
}

func TestLatestRunInfo(t *testing.T) {
	svc := testService(nil, nil, observability.NewMetricsForTesting())

	info := svc.LatestRun()
	assert.Equal(t, time.Date(2026, 8, 25, 6, 0, 0, 0, time.UTC), info.LatestRun)
	assert.Equal(t, "06Z", info.RunCycle)
	assert.NotEmpty(t, info.Model)
	assert.NotEmpty(t, info.Source)
}

func TestForecastHours(t *testing.T) {
	hours := ForecastHours()
	require.Len(t, hours, 65)
	assert.Equal(t, 0, hours[0])
	assert.Equal(t, 384, hours[len(hours)-1])
	for i := 1; i < len(hours); i++ {
		assert.Equal(t, 6, hours[i]-hours[i-1])
	}
}
