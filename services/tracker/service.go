package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// Service runs the complete refresh-and-notify pipeline as one unit of
// work. At most one pipeline execution is in flight at any time: a trigger
// that arrives while the previous cycle is still running is dropped, not
// queued.
type Service struct {
	orchestrator *Orchestrator
	dispatcher   *Dispatcher
	store        Store

	mu      sync.Mutex
	running bool
}

// NewService creates the pipeline service
func NewService(orchestrator *Orchestrator, dispatcher *Dispatcher, store Store) *Service {
	return &Service{
		orchestrator: orchestrator,
		dispatcher:   dispatcher,
		store:        store,
	}
}

// ErrCycleInProgress indicates a trigger was dropped because the previous
// cycle has not completed yet
var ErrCycleInProgress = errors.New("refresh cycle already in progress")

// IsRunning returns whether a cycle is currently in flight
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunPipeline executes one fetch, persist, resolve, notify cycle. No cycle
// outcome is fatal: all failures are reported to the caller and the next
// scheduled tick starts fresh.
func (s *Service) RunPipeline(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrCycleInProgress
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	start := time.Now()
	log.Println("Starting price refresh cycle...")

	updated, err := s.orchestrator.RunCycle(ctx)
	if err != nil {
		return fmt.Errorf("refresh cycle aborted: %w", err)
	}
	log.Printf("Refreshed prices for %d assets", len(updated))

	subscribers, err := s.store.ListSubscribersWithTrackedAssets()
	if err != nil {
		return fmt.Errorf("failed to load subscribers: %w", err)
	}

	cycleTime := time.Now().UTC()
	due := DueSubscribers(cycleTime, subscribers)
	if len(due) == 0 {
		log.Printf("Refresh cycle completed in %v, no subscribers due", time.Since(start).Round(time.Millisecond))
		return nil
	}

	result, err := s.dispatcher.Dispatch(due, cycleTime)
	if err != nil {
		return fmt.Errorf("notification dispatch failed: %w", err)
	}

	log.Printf("Refresh cycle completed in %v: updated=%d, due=%d, delivered=%d, failed=%d",
		time.Since(start).Round(time.Millisecond), len(updated), len(due), result.Delivered, result.Failed)
	return nil
}
