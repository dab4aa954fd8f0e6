package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/anomalyviz/gfs-anomaly-service/internal/gfs"
)

// AppConfig holds all service settings, populated from environment variables.
type AppConfig struct {
	Port string

	// FetchTimeout bounds each upstream grid request.
	FetchTimeout time.Duration

	// RunLatency is how long after nominal run time NOMADS is assumed to
	// have published the data.
	RunLatency time.Duration

	// LookbackWindow bounds the backward search for a published run.
	LookbackWindow time.Duration

	// MockOnly forces the synthetic generator for every request.
	MockOnly bool

	// Region selects the geographic window ("global" or "northamerica").
	Region gfs.Region

	// CacheTTL controls the response cache; 0 disables it.
	CacheTTL time.Duration

	// PrefetchInterval controls the cache warmer; 0 disables it.
	PrefetchInterval time.Duration

	// MaxConcurrentFetches bounds simultaneous upstream fetch+parse work.
	MaxConcurrentFetches int
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")

	var err error
	if cfg.FetchTimeout, err = getenvDuration("FETCH_TIMEOUT", "60s"); err != nil {
		return nil, err
	}
	if cfg.RunLatency, err = getenvDuration("RUN_LATENCY", "3h30m"); err != nil {
		return nil, err
	}
	if cfg.LookbackWindow, err = getenvDuration("LOOKBACK_WINDOW", "24h"); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getenvDuration("CACHE_TTL", "10m"); err != nil {
		return nil, err
	}
	if cfg.PrefetchInterval, err = getenvDuration("PREFETCH_INTERVAL", "30m"); err != nil {
		return nil, err
	}

	cfg.MockOnly = getenvBool("MOCK_ONLY", false)
	cfg.MaxConcurrentFetches = getenvInt("MAX_CONCURRENT_FETCHES", 4)

	region, err := gfs.RegionByName(getenvDefault("REGION", gfs.Global.Name))
	if err != nil {
		return nil, fmt.Errorf("invalid REGION: %w", err)
	}
	cfg.Region = region

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}
