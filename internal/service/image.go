package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"property-listing-api/internal/auth"
	"property-listing-api/internal/database"
	"property-listing-api/internal/models"
	"property-listing-api/internal/storage"
)

// ImageStore is the persistence the image service needs.
// *database.GormDB satisfies it.
type ImageStore interface {
	GetPropertyByID(ctx context.Context, id string) (*models.Property, error)
	CreateImages(ctx context.Context, images []models.PropertyImage) error
	GetImage(ctx context.Context, propertyID, imageID string) (*models.PropertyImage, error)
	DeleteImage(ctx context.Context, image *models.PropertyImage) error
}

// FileStorage stores and removes image files
type FileStorage interface {
	Save(ctx context.Context, propertyID, originalName string, r io.Reader) (string, error)
	Remove(url string) error
}

// UploadFile is one file of an upload batch as received from the client
type UploadFile struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// UploadedImage is the id/url pair returned for each stored image
type UploadedImage struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// UploadLimits bounds an upload batch
type UploadLimits struct {
	MaxFiles    int
	MaxFileSize int64
}

var allowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

var allowedExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".webp": true,
}

type ImageService struct {
	store  ImageStore
	files  FileStorage
	limits UploadLimits
}

func NewImageService(store ImageStore, files FileStorage, limits UploadLimits) *ImageService {
	if limits.MaxFiles <= 0 {
		limits.MaxFiles = 10
	}
	if limits.MaxFileSize <= 0 {
		limits.MaxFileSize = 5 << 20
	}
	return &ImageService{store: store, files: files, limits: limits}
}

// Upload attaches a batch of images to a property. The batch is validated as a
// whole before anything is written; if storing or recording fails part-way,
// files already written for the batch are removed again.
func (s *ImageService) Upload(ctx context.Context, propertyID string, actor auth.Actor, files []UploadFile) ([]UploadedImage, error) {
	property, err := s.store.GetPropertyByID(ctx, propertyID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if !actor.CanModify(property.UserID) {
		return nil, ErrForbidden
	}

	if err := s.validateBatch(files); err != nil {
		return nil, err
	}

	stored := make([]string, 0, len(files))
	for _, f := range files {
		url, err := s.storeFile(ctx, property.ID, f)
		if err != nil {
			s.discard(stored)
			if errors.Is(err, storage.ErrFileTooLarge) {
				return nil, newValidationError("images", fmt.Sprintf("%s exceeds %d bytes", f.Filename, s.limits.MaxFileSize))
			}
			return nil, &StorageError{Op: "save", Err: err}
		}
		stored = append(stored, url)
	}

	images := make([]models.PropertyImage, len(stored))
	for i, url := range stored {
		images[i] = models.PropertyImage{
			PropertyID: property.ID,
			URL:        url,
			Order:      i,
		}
	}

	if err := s.store.CreateImages(ctx, images); err != nil {
		s.discard(stored)
		return nil, fmt.Errorf("failed to create image records: %w", err)
	}

	result := make([]UploadedImage, len(images))
	for i, img := range images {
		result[i] = UploadedImage{ID: img.ID, URL: img.URL}
	}

	log.Printf("[Image] uploaded property=%s actor=%s count=%d", property.ID, actor.ID, len(result))
	return result, nil
}

// DeleteImage removes one image of a property. A missing file does not block
// removing the record.
func (s *ImageService) DeleteImage(ctx context.Context, propertyID, imageID string, actor auth.Actor) error {
	property, err := s.store.GetPropertyByID(ctx, propertyID)
	if err != nil {
		return mapStoreError(err)
	}
	if !actor.CanModify(property.UserID) {
		return ErrForbidden
	}

	image, err := s.store.GetImage(ctx, property.ID, imageID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrImageNotFound
		}
		return err
	}

	if err := s.files.Remove(image.URL); err != nil {
		log.Printf("[Image] failed to remove file %s: %v", image.URL, err)
	}

	if err := s.store.DeleteImage(ctx, image); err != nil {
		return fmt.Errorf("failed to delete image record: %w", err)
	}

	log.Printf("[Image] deleted property=%s image=%s actor=%s", property.ID, image.ID, actor.ID)
	return nil
}

func (s *ImageService) validateBatch(files []UploadFile) error {
	if len(files) == 0 {
		return newValidationError("images", "at least one image is required")
	}
	if len(files) > s.limits.MaxFiles {
		return newValidationError("images", fmt.Sprintf("at most %d images per upload", s.limits.MaxFiles))
	}

	verr := &ValidationError{}
	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f.Filename))
		contentType := strings.ToLower(strings.TrimSpace(strings.SplitN(f.ContentType, ";", 2)[0]))

		switch {
		case !allowedExtensions[ext] || !allowedContentTypes[contentType]:
			verr.Fields = append(verr.Fields, FieldError{
				Field:   "images",
				Message: fmt.Sprintf("%s: only jpeg, jpg, png and webp images are allowed", f.Filename),
			})
		case f.Size > s.limits.MaxFileSize:
			verr.Fields = append(verr.Fields, FieldError{
				Field:   "images",
				Message: fmt.Sprintf("%s exceeds %d bytes", f.Filename, s.limits.MaxFileSize),
			})
		}
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func (s *ImageService) storeFile(ctx context.Context, propertyID string, f UploadFile) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return s.files.Save(ctx, propertyID, f.Filename, rc)
}

// discard removes files written for a batch that did not complete
func (s *ImageService) discard(urls []string) {
	for _, url := range urls {
		if err := s.files.Remove(url); err != nil {
			log.Printf("[Image] failed to discard %s: %v", url, err)
		}
	}
}
