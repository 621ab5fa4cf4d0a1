package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"property-listing-api/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PropertyFilters narrows the public listing query. Nil bounds are ignored.
type PropertyFilters struct {
	Type     string
	MinPrice *float64
	MaxPrice *float64
	MinArea  *float64
	MaxArea  *float64
	Location string
	Limit    int
	Offset   int
}

// likeEscaper escapes LIKE wildcards with '!' so the same pattern works on MySQL and PostgreSQL
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

func activeOnly(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", models.PropertyStatusActive)
}

func withFilters(f PropertyFilters) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.Type != "" {
			db = db.Where("type = ?", f.Type)
		}
		if f.MinPrice != nil {
			db = db.Where("price >= ?", *f.MinPrice)
		}
		if f.MaxPrice != nil {
			db = db.Where("price <= ?", *f.MaxPrice)
		}
		if f.MinArea != nil {
			db = db.Where("area >= ?", *f.MinArea)
		}
		if f.MaxArea != nil {
			db = db.Where("area <= ?", *f.MaxArea)
		}
		if loc := strings.TrimSpace(f.Location); loc != "" {
			pattern := containsPattern(loc)
			db = db.Where(
				"(LOWER(city) LIKE ? ESCAPE '!' OR LOWER(postal_code) LIKE ? ESCAPE '!' OR LOWER(address) LIKE ? ESCAPE '!')",
				pattern, pattern, pattern,
			)
		}
		return db
	}
}

// listImages loads only what the listing response exposes
func listImages(db *gorm.DB) *gorm.DB {
	return db.Select("id", "property_id", "url", "sort_order").Order("sort_order ASC, created_at ASC")
}

func orderedImages(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order ASC, created_at ASC")
}

// ListActiveProperties returns one page of active properties and the total match count
func (gdb *GormDB) ListActiveProperties(ctx context.Context, f PropertyFilters) ([]models.Property, int64, error) {
	base := gdb.db.WithContext(ctx).Model(&models.Property{}).Scopes(activeOnly, withFilters(f))

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count properties: %w", err)
	}

	properties := make([]models.Property, 0)
	if total == 0 {
		return properties, 0, nil
	}

	err := base.Session(&gorm.Session{}).
		Preload("Images", listImages).
		Order("created_at DESC").
		Limit(f.Limit).
		Offset(f.Offset).
		Find(&properties).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list properties: %w", err)
	}
	return properties, total, nil
}

// GetPropertyByID retrieves a property by ID without its images
func (gdb *GormDB) GetPropertyByID(ctx context.Context, id string) (*models.Property, error) {
	var property models.Property
	if err := gdb.db.WithContext(ctx).Where("id = ?", id).First(&property).Error; err != nil {
		return nil, translateError(err)
	}
	return &property, nil
}

// GetPropertyWithImages retrieves a property of any status together with its ordered images
func (gdb *GormDB) GetPropertyWithImages(ctx context.Context, id string) (*models.Property, error) {
	var property models.Property
	err := gdb.db.WithContext(ctx).
		Preload("Images", orderedImages).
		Where("id = ?", id).
		First(&property).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &property, nil
}

func (gdb *GormDB) CreateProperty(ctx context.Context, p *models.Property) error {
	return gdb.db.WithContext(ctx).Omit(clause.Associations).Create(p).Error
}

// UpdateProperty writes every column of p; images are left untouched
func (gdb *GormDB) UpdateProperty(ctx context.Context, p *models.Property) error {
	return gdb.db.WithContext(ctx).Omit(clause.Associations).Save(p).Error
}

// DeleteProperty removes the property and its image rows and records a DeleteLog,
// all in one transaction. The deleted image rows are returned so the caller can
// remove the files after commit.
func (gdb *GormDB) DeleteProperty(ctx context.Context, p *models.Property, actorID, reason string) ([]models.PropertyImage, error) {
	var images []models.PropertyImage

	err := gdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("property_id = ?", p.ID).Find(&images).Error; err != nil {
			return err
		}

		if err := tx.Where("property_id = ?", p.ID).Delete(&models.PropertyImage{}).Error; err != nil {
			return err
		}

		deleteLog := models.DeleteLog{
			PropertyID: p.ID,
			Title:      p.Title,
			OwnerID:    p.UserID,
			ActorID:    actorID,
			ImageCount: len(images),
			Reason:     reason,
		}
		if err := tx.Create(&deleteLog).Error; err != nil {
			return err
		}

		result := tx.Where("id = ?", p.ID).Delete(&models.Property{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return images, nil
}

// CreateImages inserts a batch of image rows atomically
func (gdb *GormDB) CreateImages(ctx context.Context, images []models.PropertyImage) error {
	if len(images) == 0 {
		return nil
	}
	return gdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&images).Error
	})
}

// GetImage returns the image only if it belongs to propertyID
func (gdb *GormDB) GetImage(ctx context.Context, propertyID, imageID string) (*models.PropertyImage, error) {
	var image models.PropertyImage
	err := gdb.db.WithContext(ctx).
		Where("id = ? AND property_id = ?", imageID, propertyID).
		First(&image).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &image, nil
}

func (gdb *GormDB) DeleteImage(ctx context.Context, image *models.PropertyImage) error {
	return gdb.db.WithContext(ctx).Where("id = ?", image.ID).Delete(&models.PropertyImage{}).Error
}

// ActiveProperties returns every active property, used to rebuild the search index
func (gdb *GormDB) ActiveProperties(ctx context.Context) ([]models.Property, error) {
	var properties []models.Property
	err := gdb.db.WithContext(ctx).
		Scopes(activeOnly).
		Preload("Images", listImages).
		Order("created_at DESC").
		Find(&properties).Error
	return properties, err
}

// ExistingImageURLs reports which of urls are referenced by an image row
func (gdb *GormDB) ExistingImageURLs(ctx context.Context, urls []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(urls))
	const batchSize = 500

	for start := 0; start < len(urls); start += batchSize {
		end := start + batchSize
		if end > len(urls) {
			end = len(urls)
		}

		var found []string
		err := gdb.db.WithContext(ctx).
			Model(&models.PropertyImage{}).
			Where("url IN ?", urls[start:end]).
			Pluck("url", &found).Error
		if err != nil {
			return nil, fmt.Errorf("failed to look up image urls: %w", err)
		}
		for _, u := range found {
			existing[u] = true
		}
	}
	return existing, nil
}

// Stats summarizes listing and deletion counts for the admin API
type Stats struct {
	Properties      map[string]int64 `json:"properties"`
	TotalProperties int64            `json:"totalProperties"`
	Images          int64            `json:"images"`
	Deletions       DeleteStats      `json:"deletions"`
}

type DeleteStats struct {
	Total    int64            `json:"total"`
	ByReason map[string]int64 `json:"byReason"`
	Last30d  int64            `json:"last30Days"`
}

// GetStats returns property counts per status, image count and deletion statistics
func (gdb *GormDB) GetStats(ctx context.Context) (*Stats, error) {
	db := gdb.db.WithContext(ctx)
	stats := &Stats{
		Properties: make(map[string]int64, len(models.AllPropertyStatuses)),
		Deletions:  DeleteStats{ByReason: make(map[string]int64)},
	}
	for _, status := range models.AllPropertyStatuses {
		stats.Properties[string(status)] = 0
	}

	var statusCounts []struct {
		Status string
		Count  int64
	}
	if err := db.Model(&models.Property{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return nil, err
	}
	for _, sc := range statusCounts {
		stats.Properties[sc.Status] = sc.Count
		stats.TotalProperties += sc.Count
	}

	if err := db.Model(&models.PropertyImage{}).Count(&stats.Images).Error; err != nil {
		return nil, err
	}

	var reasonCounts []struct {
		Reason string
		Count  int64
	}
	if err := db.Model(&models.DeleteLog{}).
		Select("reason, count(*) as count").
		Group("reason").
		Scan(&reasonCounts).Error; err != nil {
		return nil, err
	}
	for _, rc := range reasonCounts {
		stats.Deletions.ByReason[rc.Reason] = rc.Count
		stats.Deletions.Total += rc.Count
	}

	thirtyDaysAgo := time.Now().AddDate(0, 0, -30)
	if err := db.Model(&models.DeleteLog{}).
		Where("deleted_at >= ?", thirtyDaysAgo).
		Count(&stats.Deletions.Last30d).Error; err != nil {
		return nil, err
	}

	return stats, nil
}

// RecentDeleteLogs returns the newest delete log entries first
func (gdb *GormDB) RecentDeleteLogs(ctx context.Context, limit int) ([]models.DeleteLog, error) {
	var logs []models.DeleteLog
	err := gdb.db.WithContext(ctx).Order("deleted_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
