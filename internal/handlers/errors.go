package handlers

import (
	"errors"
	"log"
	"net/http"

	"property-listing-api/internal/middleware"
	"property-listing-api/internal/service"

	"github.com/gin-gonic/gin"
)

// errorResponder maps service errors onto HTTP responses
type errorResponder struct {
	// hideDetail withholds internal error text from 500 responses
	hideDetail bool
}

func (r errorResponder) respond(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "validation failed",
			"errors": verr.Fields,
		})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
	case errors.Is(err, service.ErrImageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not allowed to modify this property"})
	default:
		r.internal(c, err)
	}
}

func (r errorResponder) internal(c *gin.Context, err error) {
	log.Printf("[req] id=%s error: %v", middleware.GetRequestID(c.Request.Context()), err)

	var serr *service.StorageError
	message := "Internal server error"
	if errors.As(err, &serr) {
		message = "Failed to store image"
	}

	body := gin.H{"error": message}
	if !r.hideDetail {
		body["detail"] = err.Error()
	}
	c.JSON(http.StatusInternalServerError, body)
}

// badRequest reports a malformed request that never reached the service
func badRequest(c *gin.Context, field, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":  "validation failed",
		"errors": []service.FieldError{{Field: field, Message: message}},
	})
}
