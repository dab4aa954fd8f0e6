package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/anomalyviz/gfs-anomaly-service/internal/gfs"
)

// Scheduler periodically warms the anomaly cache for the analysis slice so
// the first map load after a run rollover does not pay the upstream fetch.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   *gfs.Service
	interval  time.Duration
	timeout   time.Duration
}

// New creates a Scheduler. An interval <= 0 disables prefetching.
func New(service *gfs.Service, interval, timeout time.Duration) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		service:   service,
		interval:  interval,
		timeout:   timeout,
	}
}

// Start schedules the prefetch job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		log.Println("scheduler: prefetch disabled")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 30
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		log.Println("scheduler: warming anomaly cache for forecast hour 0")

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		resp, err := s.service.AnomalyData(ctx, 0, false)
		if err != nil {
			log.Printf("scheduler: prefetch failed: %v", err)
			return
		}
		if resp.MockData {
			log.Println("scheduler: prefetch fell back to synthetic data")
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
