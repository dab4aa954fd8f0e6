package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/anomalyviz/gfs-anomaly-service/internal/api/http"
	"github.com/anomalyviz/gfs-anomaly-service/internal/cache"
	"github.com/anomalyviz/gfs-anomaly-service/internal/config"
	"github.com/anomalyviz/gfs-anomaly-service/internal/gfs"
	"github.com/anomalyviz/gfs-anomaly-service/internal/gfs/sources"
	"github.com/anomalyviz/gfs-anomaly-service/internal/observability"
	"github.com/anomalyviz/gfs-anomaly-service/internal/scheduler"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	clock := clockwork.NewRealClock()
	metrics := observability.NewMetrics()

	// Shared HTTP client for outbound grid fetches.
	httpClient := &http.Client{
		Timeout: cfg.FetchTimeout,
	}

	// Source chain: high-resolution dataset first, coarse archive second.
	srcs := []gfs.Source{
		sources.NewPrimarySource(httpClient, cfg.Region),
		sources.NewArchiveSource(httpClient, cfg.Region),
	}

	// Core pipeline service.
	service := gfs.NewService(gfs.ServiceConfig{
		Resolver:     gfs.NewRunResolver(clock, cfg.RunLatency, cfg.LookbackWindow),
		Sources:      srcs,
		Synthetic:    gfs.NewSyntheticGenerator(cfg.Region, 0),
		Cache:        cache.NewMemory(cfg.CacheTTL, clock),
		Metrics:      metrics,
		FetchTimeout: cfg.FetchTimeout,
		MaxFetches:   cfg.MaxConcurrentFetches,
		MockOnly:     cfg.MockOnly,
	})

	// Cache warmer for the analysis slice.
	sched := scheduler.New(service, cfg.PrefetchInterval, cfg.FetchTimeout)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "gfs-anomaly-service",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          90 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"detail": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "GFS Temperature Anomaly API",
			"status":  "running",
		})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "healthy",
			"timestamp": clock.Now().UTC().Format(time.RFC3339),
		})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API routes.
	httpapi.RegisterRoutes(app, service, metrics)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
