package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"property-listing-api/internal/auth"
	"property-listing-api/internal/database"
	"property-listing-api/internal/models"
)

// PropertyStore is the persistence the property service needs.
// *database.GormDB satisfies it.
type PropertyStore interface {
	ListActiveProperties(ctx context.Context, f database.PropertyFilters) ([]models.Property, int64, error)
	GetPropertyByID(ctx context.Context, id string) (*models.Property, error)
	GetPropertyWithImages(ctx context.Context, id string) (*models.Property, error)
	CreateProperty(ctx context.Context, p *models.Property) error
	UpdateProperty(ctx context.Context, p *models.Property) error
	DeleteProperty(ctx context.Context, p *models.Property, actorID, reason string) ([]models.PropertyImage, error)
}

// FileRemover deletes stored image files by public URL
type FileRemover interface {
	Remove(url string) error
}

// Indexer keeps the search index in step with listing visibility
type Indexer interface {
	RemoveProperty(id string) error
}

// Pagination bounds for List
type Pagination struct {
	DefaultLimit int
	MaxLimit     int
}

// ListFilter holds the optional public list filters
type ListFilter struct {
	Type     string
	MinPrice *float64
	MaxPrice *float64
	MinArea  *float64
	MaxArea  *float64
	Location string
}

// ListResult is one page of active listings
type ListResult struct {
	Total      int64
	Page       int
	Limit      int
	Properties []models.Property
}

// MutationResult is returned by create and update
type MutationResult struct {
	ID     string
	Status models.PropertyStatus
}

type PropertyService struct {
	store      PropertyStore
	files      FileRemover
	indexer    Indexer
	pagination Pagination
}

// NewPropertyService creates the service. indexer may be nil when search is disabled.
func NewPropertyService(store PropertyStore, files FileRemover, indexer Indexer, pagination Pagination) *PropertyService {
	if pagination.DefaultLimit <= 0 {
		pagination.DefaultLimit = 20
	}
	if pagination.MaxLimit < pagination.DefaultLimit {
		pagination.MaxLimit = pagination.DefaultLimit
	}
	return &PropertyService{
		store:      store,
		files:      files,
		indexer:    indexer,
		pagination: pagination,
	}
}

// List returns active listings matching filter, newest first.
// Non-positive page or limit fall back to defaults; limit is capped.
func (s *PropertyService) List(ctx context.Context, filter ListFilter, page, limit int) (*ListResult, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = s.pagination.DefaultLimit
	}
	if limit > s.pagination.MaxLimit {
		limit = s.pagination.MaxLimit
	}

	properties, total, err := s.store.ListActiveProperties(ctx, database.PropertyFilters{
		Type:     filter.Type,
		MinPrice: filter.MinPrice,
		MaxPrice: filter.MaxPrice,
		MinArea:  filter.MinArea,
		MaxArea:  filter.MaxArea,
		Location: filter.Location,
		Limit:    limit,
		Offset:   (page - 1) * limit,
	})
	if err != nil {
		return nil, err
	}

	return &ListResult{
		Total:      total,
		Page:       page,
		Limit:      limit,
		Properties: properties,
	}, nil
}

// Get returns a listing of any status with its images
func (s *PropertyService) Get(ctx context.Context, id string) (*models.Property, error) {
	property, err := s.store.GetPropertyWithImages(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return property, nil
}

// Create stores a new listing owned by actor. The listing always starts pending.
func (s *PropertyService) Create(ctx context.Context, actor auth.Actor, input *PropertyInput) (*MutationResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	property := &models.Property{
		UserID: actor.ID,
		Status: models.PropertyStatusPending,
	}
	input.applyTo(property)

	if err := s.store.CreateProperty(ctx, property); err != nil {
		return nil, fmt.Errorf("failed to create property: %w", err)
	}

	log.Printf("[Property] created id=%s owner=%s", property.ID, property.UserID)
	return &MutationResult{ID: property.ID, Status: property.Status}, nil
}

// Update replaces the client-writable fields of a listing and sends it back to moderation
func (s *PropertyService) Update(ctx context.Context, id string, actor auth.Actor, input *PropertyInput) (*MutationResult, error) {
	property, err := s.loadForMutation(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	wasActive := property.IsActive()
	input.applyTo(property)
	property.Status = models.PropertyStatusPending

	if err := s.store.UpdateProperty(ctx, property); err != nil {
		return nil, fmt.Errorf("failed to update property: %w", err)
	}

	if wasActive {
		s.removeFromIndex(property.ID)
	}

	log.Printf("[Property] updated id=%s actor=%s", property.ID, actor.ID)
	return &MutationResult{ID: property.ID, Status: property.Status}, nil
}

// Delete removes a listing and its images. Files are removed after the rows are gone.
func (s *PropertyService) Delete(ctx context.Context, id string, actor auth.Actor) error {
	property, err := s.loadForMutation(ctx, id, actor)
	if err != nil {
		return err
	}

	reason := models.DeleteReasonOwner
	if !property.IsOwnedBy(actor.ID) {
		reason = models.DeleteReasonAdmin
	}

	images, err := s.store.DeleteProperty(ctx, property, actor.ID, reason)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete property: %w", err)
	}

	for _, img := range images {
		if err := s.files.Remove(img.URL); err != nil {
			log.Printf("[Property] failed to remove image file %s: %v", img.URL, err)
		}
	}
	s.removeFromIndex(property.ID)

	log.Printf("[Property] deleted id=%s actor=%s images=%d reason=%s", property.ID, actor.ID, len(images), reason)
	return nil
}

// loadForMutation fetches the listing and checks the actor may change it
func (s *PropertyService) loadForMutation(ctx context.Context, id string, actor auth.Actor) (*models.Property, error) {
	property, err := s.store.GetPropertyByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if !actor.CanModify(property.UserID) {
		return nil, ErrForbidden
	}
	return property, nil
}

func (s *PropertyService) removeFromIndex(id string) {
	if s.indexer == nil {
		return
	}
	if err := s.indexer.RemoveProperty(id); err != nil {
		log.Printf("[Property] failed to remove %s from search index: %v", id, err)
	}
}

func mapStoreError(err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
