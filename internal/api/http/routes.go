package httpapi

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/anomalyviz/gfs-anomaly-service/internal/gfs"
	"github.com/anomalyviz/gfs-anomaly-service/internal/observability"
)

var validate = validator.New()

// RegisterRoutes wires the temperature API handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *gfs.Service, metrics *observability.Metrics) {
	v1 := app.Group("/api/v1")

	v1.Get("/temperature/anomaly", func(c *fiber.Ctx) error {
		req, err := parseAnomalyQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		start := time.Now()
		resp, err := service.AnomalyData(c.Context(), req.ForecastHour, req.UseMock)
		metrics.RequestDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			// Even the synthetic fallback failed; nothing left to serve.
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		return c.JSON(resp)
	})

	v1.Get("/temperature/forecast-hours", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"forecast_hours": gfs.ForecastHours(),
			"description":    "Available forecast hours, every 6 hours from analysis out to 384",
		})
	})

	v1.Get("/temperature/latest-run", func(c *fiber.Ctx) error {
		info := service.LatestRun()
		return c.JSON(fiber.Map{
			"latest_run": info.LatestRun.UTC().Format(time.RFC3339),
			"run_cycle":  info.RunCycle,
			"model":      info.Model,
			"source":     info.Source,
		})
	})
}

// anomalyQuery holds the validated query parameters of the anomaly endpoint.
type anomalyQuery struct {
	ForecastHour int `validate:"gte=0,lte=384"`
	UseMock      bool
}

func parseAnomalyQuery(c *fiber.Ctx) (anomalyQuery, error) {
	var q anomalyQuery

	hourStr := c.Query("forecast_hour", "0")
	hour, err := strconv.Atoi(hourStr)
	if err != nil {
		return q, fmt.Errorf("forecast_hour must be an integer, got %q", hourStr)
	}
	q.ForecastHour = hour

	if mockStr := c.Query("use_mock"); mockStr != "" {
		mock, err := strconv.ParseBool(mockStr)
		if err != nil {
			return q, fmt.Errorf("use_mock must be a boolean, got %q", mockStr)
		}
		q.UseMock = mock
	}

	if err := validate.Struct(q); err != nil {
		return q, fmt.Errorf("forecast_hour must be within [0, %d]", gfs.MaxForecastHour)
	}

	return q, nil
}
