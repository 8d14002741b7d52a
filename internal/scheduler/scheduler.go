package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/solentwx/weather-station/internal/weather"
	"github.com/solentwx/weather-station/internal/wifi"
)

// Scheduler periodically fetches weather data from all stations.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   *weather.Service
	mgr       *wifi.Manager // may be nil
	interval  time.Duration
	timeout   time.Duration
}

// New creates a new Scheduler. When mgr is non-nil, fetch cycles are skipped
// while the uplink is not connected.
func New(service *weather.Service, mgr *wifi.Manager, interval, timeout time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		service:   service,
		mgr:       mgr,
		interval:  interval,
		timeout:   timeout,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	interval := s.interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	_, err := s.scheduler.Every(interval).Do(func() {
		if s.mgr != nil && s.mgr.State() != wifi.StateConnected {
			log.Printf("scheduler: skipping fetch, uplink %s", s.mgr.State())
			return
		}

		log.Println("scheduler: running weather fetch job")

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if err := s.service.FetchAndStore(ctx); err != nil {
			log.Printf("scheduler: fetch failed: %v", err)
			return
		}
		log.Println("scheduler: completed weather fetch job")
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
