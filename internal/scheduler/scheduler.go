package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"property-listing-api/internal/cleanup"
	"property-listing-api/internal/config"

	"github.com/robfig/cron/v3"
)

// jobTimeout bounds a single scheduled run
const jobTimeout = 30 * time.Minute

// Cleaner runs the orphaned file sweep
type Cleaner interface {
	Run(ctx context.Context, cfg cleanup.CleanupConfig) (*cleanup.CleanupResult, error)
}

// Reindexer rebuilds the search index
type Reindexer interface {
	Reindex(ctx context.Context) (int, error)
}

// Scheduler handles periodic maintenance tasks
type Scheduler struct {
	cron      *cron.Cron
	cleaner   Cleaner
	reindexer Reindexer
	config    *config.Config

	mu        sync.Mutex
	isRunning bool
	running   map[string]bool
}

// NewScheduler creates a new scheduler. reindexer may be nil when search is disabled.
func NewScheduler(cfg *config.Config, cleaner Cleaner, reindexer Reindexer) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		cleaner:   cleaner,
		reindexer: reindexer,
		config:    cfg,
		running:   make(map[string]bool),
	}
}

// Start registers the enabled jobs and starts the cron loop
func (s *Scheduler) Start() error {
	jobs := 0

	if s.config.Cleanup.Enabled && s.cleaner != nil {
		cronSpec := parseDailyRunTime(s.config.Cleanup.DailyRunTime)
		if _, err := s.cron.AddFunc(cronSpec, func() { s.runExclusive("cleanup", s.runCleanup) }); err != nil {
			return fmt.Errorf("failed to schedule cleanup: %w", err)
		}
		log.Printf("[Scheduler] cleanup scheduled daily at %s (cron: %s)", s.config.Cleanup.DailyRunTime, cronSpec)
		jobs++
	}

	if s.config.Search.Enabled && s.reindexer != nil && s.config.Search.ReindexSchedule != "" {
		if _, err := s.cron.AddFunc(s.config.Search.ReindexSchedule, func() { s.runExclusive("reindex", s.runReindex) }); err != nil {
			return fmt.Errorf("failed to schedule reindex: %w", err)
		}
		log.Printf("[Scheduler] search reindex scheduled (%s)", s.config.Search.ReindexSchedule)
		jobs++
	}

	if jobs == 0 {
		log.Println("[Scheduler] no jobs enabled in configuration")
		return nil
	}

	s.cron.Start()
	s.mu.Lock()
	s.isRunning = true
	s.mu.Unlock()
	log.Printf("[Scheduler] started with %d job(s)", jobs)
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	running := s.isRunning
	s.isRunning = false
	s.mu.Unlock()

	if running {
		<-s.cron.Stop().Done()
		log.Println("[Scheduler] stopped")
	}
}

// runExclusive skips a run when the previous run of the same job is still going
func (s *Scheduler) runExclusive(name string, job func(ctx context.Context) error) {
	s.mu.Lock()
	if s.running[name] {
		s.mu.Unlock()
		log.Printf("[Scheduler] %s still running, skipping", name)
		return
	}
	s.running[name] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, name)
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	log.Printf("[Scheduler] starting %s job...", name)
	if err := job(ctx); err != nil {
		log.Printf("[Scheduler] %s failed: %v", name, err)
		return
	}
	log.Printf("[Scheduler] %s completed successfully", name)
}

func (s *Scheduler) runCleanup(ctx context.Context) error {
	_, err := s.cleaner.Run(ctx, s.cleanupConfig())
	return err
}

func (s *Scheduler) runReindex(ctx context.Context) error {
	_, err := s.reindexer.Reindex(ctx)
	return err
}

// cleanupConfig maps the configured cleanup settings
func (s *Scheduler) cleanupConfig() cleanup.CleanupConfig {
	return cleanup.CleanupConfig{
		GracePeriod:      s.config.Cleanup.GetGracePeriod(),
		MaxDeletionCount: s.config.Cleanup.MaxDeletionCount,
		DryRun:           s.config.Cleanup.DryRun,
	}
}

// parseDailyRunTime converts HH:MM format to cron specification
// Example: "02:00" -> "0 2 * * *" (run at 2:00 AM every day)
func parseDailyRunTime(timeStr string) string {
	var hour, minute int
	n, _ := fmt.Sscanf(timeStr, "%d:%d", &hour, &minute)
	if n == 2 && hour >= 0 && hour < 24 && minute >= 0 && minute < 60 {
		return fmt.Sprintf("%d %d * * *", minute, hour)
	}

	// Default to 3:00 AM if parsing fails
	log.Printf("[Scheduler] failed to parse time '%s', using default 03:00", timeStr)
	return "0 3 * * *"
}
