package handlers

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"property-listing-api/internal/search"

	"github.com/gin-gonic/gin"
)

const maxSearchLimit = 100

// Searcher runs full-text queries against the listing index
type Searcher interface {
	Search(req search.SearchRequest) (*search.SearchResult, error)
}

// SearchHandler serves /api/search. A nil searcher means search is disabled.
type SearchHandler struct {
	searcher Searcher
	errs     errorResponder
}

func NewSearchHandler(searcher Searcher, hideErrorDetail bool) *SearchHandler {
	return &SearchHandler{searcher: searcher, errs: errorResponder{hideDetail: hideErrorDetail}}
}

var sortFields = map[string]bool{"price": true, "area": true, "createdAt": true}

// SearchProperties handles GET /api/search?q=...&type=&minPrice=&city=&sort=price:asc
func (h *SearchHandler) SearchProperties(c *gin.Context) {
	if h.searcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Search is not enabled"})
		return
	}

	filter, ok := parseListFilter(c)
	if !ok {
		return
	}

	req := search.SearchRequest{
		Query: strings.TrimSpace(c.Query("q")),
		Filter: search.FilterParams{
			Type:     filter.Type,
			MinPrice: filter.MinPrice,
			MaxPrice: filter.MaxPrice,
			MinArea:  filter.MinArea,
			MaxArea:  filter.MaxArea,
			City:     strings.TrimSpace(c.Query("city")),
		},
	}

	if raw := c.Query("minRooms"); raw != "" {
		rooms, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "minRooms", "must be an integer")
			return
		}
		req.Filter.MinRooms = &rooms
	}

	limit := queryInt(c, "limit")
	if limit <= 0 {
		limit = 20
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	req.Limit = int64(limit)
	if offset := queryInt(c, "offset"); offset > 0 {
		req.Offset = int64(offset)
	}

	if sortBy := c.Query("sort"); sortBy != "" {
		field, dir, _ := strings.Cut(sortBy, ":")
		if !sortFields[field] || (dir != "" && dir != "asc" && dir != "desc") {
			badRequest(c, "sort", "must be one of price, area, createdAt with optional :asc or :desc")
			return
		}
		if dir == "" {
			dir = "asc"
		}
		req.Sort = []string{field + ":" + dir}
	}

	start := time.Now()
	result, err := h.searcher.Search(req)
	if err != nil {
		h.errs.internal(c, err)
		return
	}

	log.Printf("[Search] duration_ms=%d total=%d limit=%d sort=%v",
		time.Since(start).Milliseconds(), result.TotalHits, req.Limit, req.Sort)

	c.JSON(http.StatusOK, result)
}
