package gfs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/anomalyviz/gfs-anomaly-service/internal/observability"
)

// ErrAllSourcesFailed signals that every candidate source was exhausted.
var ErrAllSourcesFailed = errors.New("all data sources failed")

// Source abstracts a gridded temperature source (e.g. NOMADS 0.25 degree,
// the 0.50 degree archive). Implementations fetch only the requested time
// slice of the temperature variable.
type Source interface {
	Name() string
	Resolution() string
	Fetch(ctx context.Context, run time.Time, forecastHour int) (Grid, error)
}

// ResponseCache is the contract the in-memory response cache must satisfy.
type ResponseCache interface {
	Get(key string) (AnomalyResponse, bool)
	Set(key string, resp AnomalyResponse)
}

// Service runs the anomaly pipeline: resolve run time, fetch from the source
// chain, compute and format the anomaly, and fall back to synthetic data on
// any failure.
type Service struct {
	resolver  *RunResolver
	sources   []Source
	synthetic *SyntheticGenerator
	cache     ResponseCache
	metrics   *observability.Metrics

	fetchTimeout time.Duration
	mockOnly     bool

	// Bounds concurrent upstream fetch+parse work so handler goroutines
	// cannot pile unbounded blocking calls onto the sources.
	fetchSlots chan struct{}
}

// ServiceConfig bundles the collaborators and tuning for a Service.
type ServiceConfig struct {
	Resolver     *RunResolver
	Sources      []Source
	Synthetic    *SyntheticGenerator
	Cache        ResponseCache
	Metrics      *observability.Metrics
	FetchTimeout time.Duration
	MaxFetches   int
	MockOnly     bool
}

// NewService creates a Service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 60 * time.Second
	}
	if cfg.MaxFetches <= 0 {
		cfg.MaxFetches = 4
	}
	if cfg.Metrics == nil {
		// Unregistered collectors, so a service wired without metrics still
		// counts safely; production passes observability.NewMetrics().
		cfg.Metrics = observability.NewMetricsForTesting()
	}
	return &Service{
		resolver:     cfg.Resolver,
		sources:      cfg.Sources,
		synthetic:    cfg.Synthetic,
		cache:        cfg.Cache,
		metrics:      cfg.Metrics,
		fetchTimeout: cfg.FetchTimeout,
		mockOnly:     cfg.MockOnly,
		fetchSlots:   make(chan struct{}, cfg.MaxFetches),
	}
}

// AnomalyData returns the anomaly response for a forecast hour. Real data is
// attempted unless useMock (or the service-wide mock-only switch) is set;
// every failure on the real path is absorbed by the synthetic fallback, so an
// error here means even the fallback could not produce a grid.
func (s *Service) AnomalyData(ctx context.Context, forecastHour int, useMock bool) (AnomalyResponse, error) {
	if forecastHour < 0 || forecastHour > MaxForecastHour {
		return AnomalyResponse{}, fmt.Errorf("forecast hour %d out of range [0, %d]", forecastHour, MaxForecastHour)
	}

	run := s.resolver.LatestRun()

	if useMock || s.mockOnly {
		return s.synthetic.Generate(run, forecastHour)
	}

	key := cacheKey(run, forecastHour)
	if s.cache != nil {
		if resp, ok := s.cache.Get(key); ok {
			s.metrics.CacheLookups.WithLabelValues("hit").Inc()
			return resp, nil
		}
		s.metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	resp, err := s.observed(ctx, run, forecastHour)
	if err != nil {
		log.Printf("INFO: real data unavailable for run %s f%03d, falling back to synthetic: %v",
			run.Format("2006-01-02 15Z"), forecastHour, err)
		s.metrics.SyntheticFallbacks.Inc()
		return s.synthetic.Generate(run, forecastHour)
	}

	if s.cache != nil {
		s.cache.Set(key, resp)
	}
	return resp, nil
}

// observed walks the source chain until one yields a usable grid, then runs
// the anomaly calculation and formatting stages. A formatting failure is a
// pipeline failure, not a reason to try the next source.
func (s *Service) observed(ctx context.Context, run time.Time, forecastHour int) (AnomalyResponse, error) {
	select {
	case s.fetchSlots <- struct{}{}:
	case <-ctx.Done():
		return AnomalyResponse{}, ctx.Err()
	}
	defer func() { <-s.fetchSlots }()

	validTime := run.Add(time.Duration(forecastHour) * time.Hour)

	for _, src := range s.sources {
		fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
		grid, err := src.Fetch(fetchCtx, run, forecastHour)
		cancel()
		if err != nil {
			log.Printf("ERROR: source %s failed for run %s f%03d: %v",
				src.Name(), run.Format("2006-01-02 15Z"), forecastHour, err)
			s.metrics.FetchAttempts.WithLabelValues(src.Name(), "error").Inc()
			continue
		}
		s.metrics.FetchAttempts.WithLabelValues(src.Name(), "success").Inc()

		anomaly := Anomaly(grid, validTime)
		return FormatResponse(anomaly, run, forecastHour, src.Name(), src.Resolution())
	}

	return AnomalyResponse{}, ErrAllSourcesFailed
}

// RunInfo describes the latest resolved model run for the metadata endpoint.
type RunInfo struct {
	LatestRun time.Time
	RunCycle  string
	Model     string
	Source    string
}

// LatestRun reports the run the pipeline would use right now.
func (s *Service) LatestRun() RunInfo {
	run := s.resolver.LatestRun()
	info := RunInfo{
		LatestRun: run,
		RunCycle:  fmt.Sprintf("%02dZ", run.Hour()),
		Model:     "GFS 0.25 Degree",
		Source:    "NOAA NOMADS",
	}
	if s.mockOnly {
		info.Source = "synthetic"
	}
	return info
}

// cacheKey identifies a cached response by run and forecast hour. The region
// is fixed for the process lifetime and synthetic responses are never cached,
// so neither belongs in the key.
func cacheKey(run time.Time, forecastHour int) string {
	return fmt.Sprintf("%s|f%03d", run.Format("2006010215"), forecastHour)
}
