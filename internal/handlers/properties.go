package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"property-listing-api/internal/auth"
	"property-listing-api/internal/models"
	"property-listing-api/internal/service"

	"github.com/gin-gonic/gin"
)

// PropertyService is the property use-case surface the handler drives
type PropertyService interface {
	List(ctx context.Context, filter service.ListFilter, page, limit int) (*service.ListResult, error)
	Get(ctx context.Context, id string) (*models.Property, error)
	Create(ctx context.Context, actor auth.Actor, input *service.PropertyInput) (*service.MutationResult, error)
	Update(ctx context.Context, id string, actor auth.Actor, input *service.PropertyInput) (*service.MutationResult, error)
	Delete(ctx context.Context, id string, actor auth.Actor) error
}

// PropertyHandler handles listing CRUD requests
type PropertyHandler struct {
	properties PropertyService
	errs       errorResponder
}

func NewPropertyHandler(properties PropertyService, hideErrorDetail bool) *PropertyHandler {
	return &PropertyHandler{
		properties: properties,
		errs:       errorResponder{hideDetail: hideErrorDetail},
	}
}

type imageRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// propertyView renders a property with its images as id/url pairs.
// Images is always an array, even when empty.
type propertyView struct {
	models.Property
	Images []imageRef `json:"images"`
}

func newPropertyView(p models.Property) propertyView {
	refs := make([]imageRef, 0, len(p.Images))
	for _, img := range p.Images {
		refs = append(refs, imageRef{ID: img.ID, URL: img.URL})
	}
	return propertyView{Property: p, Images: refs}
}

// ListProperties returns a page of active listings
func (h *PropertyHandler) ListProperties(c *gin.Context) {
	filter, ok := parseListFilter(c)
	if !ok {
		return
	}

	page := queryInt(c, "page")
	limit := queryInt(c, "limit")

	result, err := h.properties.List(c.Request.Context(), filter, page, limit)
	if err != nil {
		h.errs.respond(c, err)
		return
	}

	items := make([]propertyView, 0, len(result.Properties))
	for _, p := range result.Properties {
		items = append(items, newPropertyView(p))
	}

	c.JSON(http.StatusOK, gin.H{
		"total":      result.Total,
		"page":       result.Page,
		"limit":      result.Limit,
		"properties": items,
	})
}

// GetProperty returns one listing of any status with its images
func (h *PropertyHandler) GetProperty(c *gin.Context) {
	property, err := h.properties.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.errs.respond(c, err)
		return
	}

	c.JSON(http.StatusOK, newPropertyView(*property))
}

// CreateProperty stores a new listing for the authenticated actor
func (h *PropertyHandler) CreateProperty(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	input, ok := bindPropertyInput(c)
	if !ok {
		return
	}

	result, err := h.properties.Create(c.Request.Context(), actor, input)
	if err != nil {
		h.errs.respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":      result.ID,
		"status":  result.Status,
		"message": "Property created and pending moderation",
	})
}

// UpdateProperty replaces a listing's fields; the listing goes back to moderation
func (h *PropertyHandler) UpdateProperty(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	input, ok := bindPropertyInput(c)
	if !ok {
		return
	}

	result, err := h.properties.Update(c.Request.Context(), c.Param("id"), actor, input)
	if err != nil {
		h.errs.respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":      result.ID,
		"status":  result.Status,
		"message": "Property updated and pending moderation",
	})
}

// DeleteProperty removes a listing and all its images
func (h *PropertyHandler) DeleteProperty(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	if err := h.properties.Delete(c.Request.Context(), c.Param("id"), actor); err != nil {
		h.errs.respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Property deleted"})
}

func requireActor(c *gin.Context) (auth.Actor, bool) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return auth.Actor{}, false
	}
	return actor, true
}

// bindPropertyInput decodes the JSON body. Unknown fields such as status or
// userId are ignored.
func bindPropertyInput(c *gin.Context) (*service.PropertyInput, bool) {
	var input service.PropertyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		if errors.Is(err, io.EOF) {
			badRequest(c, "body", "request body is required")
		} else {
			badRequest(c, "body", "invalid JSON: "+err.Error())
		}
		return nil, false
	}
	return &input, true
}

// parseListFilter reads the optional filters; malformed numbers are rejected
func parseListFilter(c *gin.Context) (service.ListFilter, bool) {
	filter := service.ListFilter{
		Type:     strings.TrimSpace(c.Query("type")),
		Location: strings.TrimSpace(c.Query("location")),
	}

	bounds := []struct {
		name string
		dst  **float64
	}{
		{"minPrice", &filter.MinPrice},
		{"maxPrice", &filter.MaxPrice},
		{"minArea", &filter.MinArea},
		{"maxArea", &filter.MaxArea},
	}
	for _, b := range bounds {
		raw := strings.TrimSpace(c.Query(b.name))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			badRequest(c, b.name, "must be a number")
			return filter, false
		}
		*b.dst = &v
	}
	return filter, true
}

// queryInt returns 0 for a missing or malformed value so the service default applies
func queryInt(c *gin.Context, name string) int {
	v, err := strconv.Atoi(strings.TrimSpace(c.Query(name)))
	if err != nil {
		return 0
	}
	return v
}
