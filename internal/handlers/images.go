package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"property-listing-api/internal/auth"
	"property-listing-api/internal/service"

	"github.com/gin-gonic/gin"
)

// ImageService is the image use-case surface the handler drives
type ImageService interface {
	Upload(ctx context.Context, propertyID string, actor auth.Actor, files []service.UploadFile) ([]service.UploadedImage, error)
	DeleteImage(ctx context.Context, propertyID, imageID string, actor auth.Actor) error
}

// ImageHandler handles image upload and removal
type ImageHandler struct {
	images ImageService
	// maxBodySize caps the whole multipart request
	maxBodySize int64
	errs        errorResponder
}

func NewImageHandler(images ImageService, maxFiles int, maxFileSize int64, hideErrorDetail bool) *ImageHandler {
	return &ImageHandler{
		images: images,
		// room for one file over the limit so the batch size check can report it
		maxBodySize: int64(maxFiles+1)*maxFileSize + 1<<20,
		errs:        errorResponder{hideDetail: hideErrorDetail},
	}
}

// UploadImages accepts multipart field "images" with one or more files
func (h *ImageHandler) UploadImages(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodySize)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Upload too large"})
			return
		}
		badRequest(c, "images", "expected multipart form data")
		return
	}

	headers := form.File["images"]
	files := make([]service.UploadFile, 0, len(headers))
	for _, fh := range headers {
		files = append(files, uploadFileFrom(fh))
	}

	uploaded, err := h.images.Upload(c.Request.Context(), c.Param("id"), actor, files)
	if err != nil {
		h.errs.respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Images uploaded",
		"images":  uploaded,
	})
}

// DeleteImage removes one image from a property
func (h *ImageHandler) DeleteImage(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	if err := h.images.DeleteImage(c.Request.Context(), c.Param("id"), c.Param("imageId"), actor); err != nil {
		h.errs.respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Image deleted"})
}

func uploadFileFrom(fh *multipart.FileHeader) service.UploadFile {
	return service.UploadFile{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}
