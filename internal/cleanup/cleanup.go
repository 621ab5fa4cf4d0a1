package cleanup

import (
	"context"
	"fmt"
	"log"
	"time"

	"property-listing-api/internal/storage"
)

// FileStore enumerates and removes stored image files
type FileStore interface {
	Walk(ctx context.Context, fn func(storage.StoredFile) error) error
	Remove(url string) error
	PruneEmptyDirs(ctx context.Context, cutoff time.Time) (int, error)
}

// ImageIndex reports which image urls are still referenced
type ImageIndex interface {
	ExistingImageURLs(ctx context.Context, urls []string) (map[string]bool, error)
}

// Service removes image files that no image row references any more,
// e.g. left behind by a crash between storing a file and recording it.
type Service struct {
	files  FileStore
	images ImageIndex
	now    func() time.Time
}

// NewService creates a new cleanup service
func NewService(files FileStore, images ImageIndex) *Service {
	return &Service{files: files, images: images, now: time.Now}
}

// CleanupConfig holds configuration for cleanup operations
type CleanupConfig struct {
	GracePeriod      time.Duration // Files younger than this are never touched (uploads in flight)
	MaxDeletionCount int           // Abort instead of deleting more than this many files
	DryRun           bool          // Only report what would be deleted
}

// DefaultCleanupConfig returns default configuration
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		GracePeriod:      time.Hour,
		MaxDeletionCount: 1000,
		DryRun:           false,
	}
}

// CleanupResult holds the result of a cleanup operation
type CleanupResult struct {
	ScannedCount int       `json:"scannedCount"`
	TargetCount  int       `json:"targetCount"`
	DeletedCount int       `json:"deletedCount"`
	ErrorCount   int       `json:"errorCount"`
	DryRun       bool      `json:"dryRun"`
	ExecutedAt   time.Time `json:"executedAt"`
	PrunedDirs   int       `json:"prunedDirs"`
	DeletedFiles []string  `json:"deletedFiles"`
	Errors       []string  `json:"errors,omitempty"`
}

// FindOrphans returns urls of files older than the grace period with no image row
func (s *Service) FindOrphans(ctx context.Context, gracePeriod time.Duration) (scanned int, orphans []string, err error) {
	cutoff := s.now().Add(-gracePeriod)

	var candidates []string
	err = s.files.Walk(ctx, func(f storage.StoredFile) error {
		scanned++
		if f.ModTime.Before(cutoff) {
			candidates = append(candidates, f.URL)
		}
		return nil
	})
	if err != nil {
		return 0, nil, fmt.Errorf("failed to scan storage: %w", err)
	}
	if len(candidates) == 0 {
		return scanned, nil, nil
	}

	existing, err := s.images.ExistingImageURLs(ctx, candidates)
	if err != nil {
		return 0, nil, err
	}
	for _, url := range candidates {
		if !existing[url] {
			orphans = append(orphans, url)
		}
	}
	return scanned, orphans, nil
}

// Run deletes orphaned files, honoring DryRun and MaxDeletionCount
func (s *Service) Run(ctx context.Context, config CleanupConfig) (*CleanupResult, error) {
	result := &CleanupResult{
		DryRun:       config.DryRun,
		ExecutedAt:   s.now(),
		DeletedFiles: []string{},
	}

	scanned, orphans, err := s.FindOrphans(ctx, config.GracePeriod)
	if err != nil {
		return nil, err
	}
	result.ScannedCount = scanned
	result.TargetCount = len(orphans)

	if result.TargetCount == 0 {
		log.Printf("[Cleanup] no orphaned files among %d scanned", scanned)
		s.pruneDirs(ctx, config, result)
		return result, nil
	}

	// Safety check: a mass of orphans more likely means a misconfigured prefix or database
	if config.MaxDeletionCount > 0 && result.TargetCount > config.MaxDeletionCount {
		return nil, fmt.Errorf("safety check failed: %d orphaned files exceed max deletion limit of %d",
			result.TargetCount, config.MaxDeletionCount)
	}

	log.Printf("[Cleanup] starting: %d orphaned files (grace: %s, dry-run: %v)",
		result.TargetCount, config.GracePeriod, config.DryRun)

	for _, url := range orphans {
		if config.DryRun {
			log.Printf("[Cleanup] [DRY-RUN] would delete %s", url)
			result.DeletedFiles = append(result.DeletedFiles, url)
			result.DeletedCount++
			continue
		}

		if err := s.files.Remove(url); err != nil {
			errMsg := fmt.Sprintf("failed to delete %s: %v", url, err)
			log.Printf("[Cleanup] ERROR: %s", errMsg)
			result.Errors = append(result.Errors, errMsg)
			result.ErrorCount++
			continue
		}
		result.DeletedFiles = append(result.DeletedFiles, url)
		result.DeletedCount++
	}

	s.pruneDirs(ctx, config, result)

	log.Printf("[Cleanup] completed: %d/%d deleted, %d dirs pruned, %d errors (dry-run: %v)",
		result.DeletedCount, result.TargetCount, result.PrunedDirs, result.ErrorCount, config.DryRun)

	return result, nil
}

// pruneDirs drops empty property directories older than the grace period.
// Remove leaves directories in place so it never races an upload into the same property.
func (s *Service) pruneDirs(ctx context.Context, config CleanupConfig, result *CleanupResult) {
	if config.DryRun {
		return
	}
	pruned, err := s.files.PruneEmptyDirs(ctx, s.now().Add(-config.GracePeriod))
	result.PrunedDirs = pruned
	if err != nil {
		errMsg := fmt.Sprintf("failed to prune directories: %v", err)
		log.Printf("[Cleanup] ERROR: %s", errMsg)
		result.Errors = append(result.Errors, errMsg)
		result.ErrorCount++
	}
}
