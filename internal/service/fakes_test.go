package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"property-listing-api/internal/database"
	"property-listing-api/internal/models"

	"github.com/google/uuid"
)

// memoryStore is an in-memory PropertyStore and ImageStore
type memoryStore struct {
	mu         sync.Mutex
	properties map[string]models.Property
	images     map[string]models.PropertyImage
	deleteLogs []models.DeleteLog
	clock      time.Time

	createImagesErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		properties: make(map[string]models.Property),
		images:     make(map[string]models.PropertyImage),
		clock:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memoryStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

// seed inserts a property directly, bypassing the service
func (m *memoryStore) seed(p models.Property) models.Property {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.tick()
	}
	p.Images = nil
	m.properties[p.ID] = p
	return p
}

func (m *memoryStore) imagesFor(propertyID string) []models.PropertyImage {
	var out []models.PropertyImage
	for _, img := range m.images {
		if img.PropertyID == propertyID {
			out = append(out, img)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

func (m *memoryStore) ListActiveProperties(_ context.Context, f database.PropertyFilters) ([]models.Property, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []models.Property
	for _, p := range m.properties {
		if p.Status != models.PropertyStatusActive {
			continue
		}
		if f.Type != "" && string(p.Type) != f.Type {
			continue
		}
		if f.MinPrice != nil && p.Price < *f.MinPrice {
			continue
		}
		if f.MaxPrice != nil && p.Price > *f.MaxPrice {
			continue
		}
		if f.MinArea != nil && p.Area < *f.MinArea {
			continue
		}
		if f.MaxArea != nil && p.Area > *f.MaxArea {
			continue
		}
		if loc := strings.ToLower(f.Location); loc != "" {
			if !strings.Contains(strings.ToLower(p.City), loc) &&
				!strings.Contains(strings.ToLower(p.PostalCode), loc) &&
				!strings.Contains(strings.ToLower(p.Address), loc) {
				continue
			}
		}
		p.Images = m.imagesFor(p.ID)
		matched = append(matched, p)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	if f.Offset >= len(matched) {
		return []models.Property{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[f.Offset:end], total, nil
}

func (m *memoryStore) GetPropertyByID(_ context.Context, id string) (*models.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.properties[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &p, nil
}

func (m *memoryStore) GetPropertyWithImages(ctx context.Context, id string) (*models.Property, error) {
	p, err := m.GetPropertyByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p.Images = m.imagesFor(id)
	return p, nil
}

func (m *memoryStore) CreateProperty(_ context.Context, p *models.Property) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = m.tick()
	p.UpdatedAt = p.CreatedAt
	stored := *p
	stored.Features = append([]string(nil), p.Features...)
	m.properties[p.ID] = stored
	return nil
}

func (m *memoryStore) UpdateProperty(_ context.Context, p *models.Property) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.properties[p.ID]; !ok {
		return database.ErrNotFound
	}
	p.UpdatedAt = m.tick()
	stored := *p
	stored.Images = nil
	m.properties[p.ID] = stored
	return nil
}

func (m *memoryStore) DeleteProperty(_ context.Context, p *models.Property, actorID, reason string) ([]models.PropertyImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.properties[p.ID]; !ok {
		return nil, database.ErrNotFound
	}
	images := m.imagesFor(p.ID)
	for _, img := range images {
		delete(m.images, img.ID)
	}
	delete(m.properties, p.ID)
	m.deleteLogs = append(m.deleteLogs, models.DeleteLog{
		PropertyID: p.ID,
		Title:      p.Title,
		OwnerID:    p.UserID,
		ActorID:    actorID,
		ImageCount: len(images),
		Reason:     reason,
	})
	return images, nil
}

func (m *memoryStore) CreateImages(_ context.Context, images []models.PropertyImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createImagesErr != nil {
		return m.createImagesErr
	}
	for i := range images {
		if images[i].ID == "" {
			images[i].ID = uuid.NewString()
		}
		m.images[images[i].ID] = images[i]
	}
	return nil
}

func (m *memoryStore) GetImage(_ context.Context, propertyID, imageID string) (*models.PropertyImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.images[imageID]
	if !ok || img.PropertyID != propertyID {
		return nil, database.ErrNotFound
	}
	return &img, nil
}

func (m *memoryStore) DeleteImage(_ context.Context, image *models.PropertyImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.images, image.ID)
	return nil
}

func (m *memoryStore) imageCount(propertyID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.imagesFor(propertyID))
}

// recordingIndexer records removals from the search index
type recordingIndexer struct {
	removed []string
}

func (r *recordingIndexer) RemoveProperty(id string) error {
	r.removed = append(r.removed, id)
	return nil
}

// failingStorage wraps a FileStorage and fails the nth Save (1-based)
type failingStorage struct {
	FileStorage
	failOn int
	saves  int
}

func (f *failingStorage) Save(ctx context.Context, propertyID, name string, r io.Reader) (string, error) {
	f.saves++
	if f.saves == f.failOn {
		return "", errors.New("disk full")
	}
	return f.FileStorage.Save(ctx, propertyID, name, r)
}
