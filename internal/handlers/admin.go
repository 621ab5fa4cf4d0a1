package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"property-listing-api/internal/cleanup"
	"property-listing-api/internal/database"
	"property-listing-api/internal/models"
	"property-listing-api/internal/ratelimit"

	"github.com/gin-gonic/gin"
)

// StatsSource provides the aggregate numbers and audit trail shown to admins
type StatsSource interface {
	GetStats(ctx context.Context) (*database.Stats, error)
	RecentDeleteLogs(ctx context.Context, limit int) ([]models.DeleteLog, error)
}

// Cleaner runs the orphaned image sweep
type Cleaner interface {
	Run(ctx context.Context, cfg cleanup.CleanupConfig) (*cleanup.CleanupResult, error)
}

// Reindexer rebuilds the search index
type Reindexer interface {
	Reindex(ctx context.Context) (int, error)
}

// AdminHandler handles admin-related requests
type AdminHandler struct {
	stats     StatsSource
	cleaner   Cleaner
	reindexer Reindexer
	limiter   *ratelimit.RateLimiter
	// cleanupDefaults are used for fields the request leaves unset
	cleanupDefaults cleanup.CleanupConfig
	errs            errorResponder
}

// NewAdminHandler creates a new admin handler. reindexer and limiter may be nil.
func NewAdminHandler(stats StatsSource, cleaner Cleaner, reindexer Reindexer, limiter *ratelimit.RateLimiter, cleanupDefaults cleanup.CleanupConfig, hideErrorDetail bool) *AdminHandler {
	return &AdminHandler{
		stats:           stats,
		cleaner:         cleaner,
		reindexer:       reindexer,
		limiter:         limiter,
		cleanupDefaults: cleanupDefaults,
		errs:            errorResponder{hideDetail: hideErrorDetail},
	}
}

// GetStats returns system statistics
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.stats.GetStats(c.Request.Context())
	if err != nil {
		h.errs.internal(c, err)
		return
	}

	body := gin.H{
		"properties": gin.H{
			"byStatus": stats.Properties,
			"total":    stats.TotalProperties,
		},
		"images":    stats.Images,
		"deletions": stats.Deletions,
	}
	if h.limiter != nil {
		body["rateLimit"] = h.limiter.GetStats()
	}
	c.JSON(http.StatusOK, body)
}

// GetDeleteLogs returns recent delete log entries
func (h *AdminHandler) GetDeleteLogs(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 || limit > 1000 {
		limit = 100
	}

	logs, err := h.stats.RecentDeleteLogs(c.Request.Context(), limit)
	if err != nil {
		h.errs.internal(c, err)
		return
	}
	if logs == nil {
		logs = []models.DeleteLog{}
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":  logs,
		"count": len(logs),
	})
}

// RunCleanup sweeps image files no image row references
func (h *AdminHandler) RunCleanup(c *gin.Context) {
	var req struct {
		GracePeriodMinutes int   `json:"grace_period_minutes"`
		MaxDeletionCount   int   `json:"max_deletion_count"`
		DryRun             *bool `json:"dry_run"` // defaults to true
	}

	// An empty body is a dry run with the configured limits
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "body", "invalid JSON: "+err.Error())
		return
	}

	config := h.cleanupDefaults
	if req.GracePeriodMinutes > 0 {
		config.GracePeriod = time.Duration(req.GracePeriodMinutes) * time.Minute
	}
	if req.MaxDeletionCount > 0 {
		config.MaxDeletionCount = req.MaxDeletionCount
	}
	config.DryRun = req.DryRun == nil || *req.DryRun

	log.Printf("Admin: Running cleanup (grace: %s, max: %d, dry-run: %v)",
		config.GracePeriod, config.MaxDeletionCount, config.DryRun)

	result, err := h.cleaner.Run(c.Request.Context(), config)
	if err != nil {
		log.Printf("Admin: Cleanup failed: %v", err)
		h.errs.internal(c, err)
		return
	}

	log.Printf("Admin: Cleanup completed: %d/%d deleted (dry-run: %v)",
		result.DeletedCount, result.TargetCount, result.DryRun)

	c.JSON(http.StatusOK, result)
}

// Reindex rebuilds the search index from the active listings
func (h *AdminHandler) Reindex(c *gin.Context) {
	if h.reindexer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Search is not enabled"})
		return
	}

	log.Println("Admin: Manual reindex requested")
	count, err := h.reindexer.Reindex(c.Request.Context())
	if err != nil {
		h.errs.internal(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Search index rebuilt",
		"indexed": count,
	})
}
