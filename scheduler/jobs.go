package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"cryptotrack-backend/services/archive"
	"cryptotrack-backend/services/tracker"

	"github.com/go-co-op/gocron"
)

// Scheduler manages scheduled jobs
type Scheduler struct {
	cron            *gocron.Scheduler
	pipeline        *tracker.Service
	archiver        *archive.Archiver
	refreshInterval int
}

// NewScheduler creates a new scheduler instance. The refresh interval is
// fixed at process start and is independent of subscriber-level intervals,
// which are checked against elapsed wall-clock time each tick.
func NewScheduler(pipeline *tracker.Service, archiver *archive.Archiver, refreshIntervalMinutes int) *Scheduler {
	if refreshIntervalMinutes < 1 {
		refreshIntervalMinutes = 1
	}
	return &Scheduler{
		cron:            gocron.NewScheduler(time.UTC),
		pipeline:        pipeline,
		archiver:        archiver,
		refreshInterval: refreshIntervalMinutes,
	}
}

// Start starts all scheduled jobs
func (s *Scheduler) Start() {
	log.Println("Starting scheduler...")

	// Refresh prices and notify due subscribers. SingletonMode plus the
	// pipeline's own in-flight guard ensures an overlapping tick is
	// dropped rather than queued.
	s.cron.Every(s.refreshInterval).Minutes().SingletonMode().Do(func() {
		s.runRefreshCycle()
	})

	// Mirror price history to MongoDB daily at 02:00
	if s.archiver != nil {
		s.cron.Every(1).Day().At("02:00").Do(func() {
			if err := s.archiver.ArchiveAll(context.Background()); err != nil {
				log.Printf("Scheduled price archive failed: %v", err)
			}
		})
	}

	s.cron.StartAsync()
	log.Printf("Scheduler started successfully (refresh every %d minutes)", s.refreshInterval)
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Scheduler stopped")
}

// runRefreshCycle runs one pipeline cycle. No error here is fatal; the
// scheduler keeps firing ticks regardless of any single cycle's outcome.
func (s *Scheduler) runRefreshCycle() {
	err := s.pipeline.RunPipeline(context.Background())
	switch {
	case err == nil:
	case errors.Is(err, tracker.ErrCycleInProgress):
		log.Println("Previous refresh cycle still running, tick dropped")
	case errors.Is(err, tracker.ErrNoAssets):
		log.Println("No assets configured, refresh cycle skipped")
	default:
		log.Printf("Refresh cycle failed: %v", err)
	}
}
