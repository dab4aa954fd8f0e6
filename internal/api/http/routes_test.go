package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"

	"github.com/anomalyviz/gfs-anomaly-service/internal/gfs"
	"github.com/anomalyviz/gfs-anomaly-service/internal/observability"
)

// deadSource always fails, forcing the synthetic fallback.
type deadSource struct{}

func (deadSource) Name() string       { return "dead" }
func (deadSource) Resolution() string { return "" }
func (deadSource) Fetch(ctx context.Context, run time.Time, forecastHour int) (gfs.Grid, error) {
	return gfs.Grid{}, errors.New("unreachable")
}

func newTestApp() *fiber.App {
	app := fiber.New()

	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC))
	metrics := observability.NewMetricsForTesting()
	svc := gfs.NewService(gfs.ServiceConfig{
		Resolver:     gfs.NewRunResolver(clock, 3*time.Hour+30*time.Minute, 24*time.Hour),
		Sources:      []gfs.Source{deadSource{}},
		Synthetic:    gfs.NewSyntheticGenerator(gfs.Global, 1),
		Metrics:      metrics,
		FetchTimeout: time.Second,
	})
	RegisterRoutes(app, svc, metrics)
	return app
}

// TestForecastHourValidation verifies that out-of-range or malformed
// forecast_hour values are rejected before the pipeline runs.
func TestForecastHourValidation(t *testing.T) {
	app := newTestApp()

	for _, query := range []string{
		"forecast_hour=385",
		"forecast_hour=-1",
		"forecast_hour=abc",
		"use_mock=maybe",
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/temperature/anomaly?"+query, nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("query %q: expected status %d, got %d", query, http.StatusBadRequest, resp.StatusCode)
		}
	}
}

// TestAnomalyMockResponse verifies the mock path returns a well-formed grid
// at the generator's fixed global resolution.
func TestAnomalyMockResponse(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/temperature/anomaly?forecast_hour=0&use_mock=true", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var body gfs.AnomalyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !body.MockData {
		t.Fatal("expected mock_data to be true")
	}
	if body.ForecastHour != 0 {
		t.Fatalf("expected forecast_hour 0, got %d", body.ForecastHour)
	}
	if len(body.AnomalyData.Lats) != 181 || len(body.AnomalyData.Lons) != 360 {
		t.Fatalf("unexpected grid shape: %dx%d", len(body.AnomalyData.Lats), len(body.AnomalyData.Lons))
	}
	if len(body.AnomalyData.Values) != len(body.AnomalyData.Lats) {
		t.Fatalf("values rows %d != lats %d", len(body.AnomalyData.Values), len(body.AnomalyData.Lats))
	}
}

// TestAnomalyFallsBackToMock verifies that a dead source chain still yields a
// well-formed response flagged as synthetic.
func TestAnomalyFallsBackToMock(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/temperature/anomaly?forecast_hour=384", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var body gfs.AnomalyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !body.MockData {
		t.Fatal("expected mock_data to be true after source exhaustion")
	}
	if body.ForecastHour != 384 {
		t.Fatalf("expected forecast_hour 384, got %d", body.ForecastHour)
	}
}

func TestForecastHoursEndpoint(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/temperature/forecast-hours", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var body struct {
		ForecastHours []int  `json:"forecast_hours"`
		Description   string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.ForecastHours) != 65 {
		t.Fatalf("expected 65 forecast hours, got %d", len(body.ForecastHours))
	}
	if body.ForecastHours[0] != 0 || body.ForecastHours[64] != 384 {
		t.Fatalf("unexpected forecast hour range: %v", body.ForecastHours)
	}
	if body.Description == "" {
		t.Fatal("expected a description")
	}
}

func TestLatestRunEndpoint(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/temperature/latest-run", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var body struct {
		LatestRun string `json:"latest_run"`
		RunCycle  string `json:"run_cycle"`
		Model     string `json:"model"`
		Source    string `json:"source"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.LatestRun != "2026-08-25T06:00:00Z" {
		t.Fatalf("unexpected latest_run: %s", body.LatestRun)
	}
	if body.RunCycle != "06Z" {
		t.Fatalf("unexpected run_cycle: %s", body.RunCycle)
	}
	if body.Model == "" || body.Source == "" {
		t.Fatal("expected model and source to be set")
	}
}
