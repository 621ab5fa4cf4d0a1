package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"property-listing-api/internal/models"

	"github.com/meilisearch/meilisearch-go"
)

// Document is the search-side view of an active listing
type Document struct {
	ID          string   `json:"id"`
	UserID      string   `json:"userId"`
	Type        string   `json:"type"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Area        float64  `json:"area"`
	Rooms       int      `json:"rooms"`
	Bathrooms   int      `json:"bathrooms"`
	Address     string   `json:"address"`
	City        string   `json:"city"`
	PostalCode  string   `json:"postalCode"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Features    []string `json:"features"`
	CoverURL    string   `json:"coverUrl,omitempty"`
	CreatedAt   int64    `json:"createdAt"`
}

// NewDocument flattens a property for indexing
func NewDocument(p *models.Property) Document {
	doc := Document{
		ID:          p.ID,
		UserID:      p.UserID,
		Type:        string(p.Type),
		Title:       p.Title,
		Description: p.Description,
		Price:       p.Price,
		Area:        p.Area,
		Rooms:       p.Rooms,
		Bathrooms:   p.Bathrooms,
		Address:     p.Address,
		City:        p.City,
		PostalCode:  p.PostalCode,
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
		Features:    append([]string{}, p.Features...),
		CreatedAt:   p.CreatedAt.Unix(),
	}
	if len(p.Images) > 0 {
		doc.CoverURL = p.Images[0].URL
	}
	return doc
}

type SearchClient struct {
	client *meilisearch.Client
	index  string
}

func NewSearchClient(host, apiKey, index string) *SearchClient {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   host,
		APIKey: apiKey,
	})
	if index == "" {
		index = "properties"
	}

	return &SearchClient{
		client: client,
		index:  index,
	}
}

// InitIndex initializes the Meilisearch index
func (s *SearchClient) InitIndex() error {
	// Create index if it doesn't exist
	_, err := s.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        s.index,
		PrimaryKey: "id",
	})
	// Ignore error if index already exists
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return err
	}

	_, err = s.client.Index(s.index).UpdateSearchableAttributes(&[]string{
		"title",
		"description",
		"city",
		"postalCode",
		"address",
		"features",
	})
	if err != nil {
		return err
	}

	_, err = s.client.Index(s.index).UpdateFilterableAttributes(&[]string{
		"type",
		"price",
		"area",
		"rooms",
		"city",
		"postalCode",
	})
	if err != nil {
		return err
	}

	_, err = s.client.Index(s.index).UpdateSortableAttributes(&[]string{
		"price",
		"area",
		"createdAt",
	})
	if err != nil {
		return err
	}

	return nil
}

// IndexProperties indexes multiple properties
func (s *SearchClient) IndexProperties(properties []models.Property) error {
	if len(properties) == 0 {
		return nil
	}
	docs := make([]Document, 0, len(properties))
	for i := range properties {
		docs = append(docs, NewDocument(&properties[i]))
	}
	_, err := s.client.Index(s.index).AddDocuments(docs)
	return err
}

// RemoveProperty drops a listing from the index
func (s *SearchClient) RemoveProperty(id string) error {
	_, err := s.client.Index(s.index).DeleteDocument(id)
	return err
}

// ActiveSource provides the listings that should be searchable
type ActiveSource interface {
	ActiveProperties(ctx context.Context) ([]models.Property, error)
}

// Reindex replaces the index contents with the current active listings
func (s *SearchClient) Reindex(ctx context.Context, source ActiveSource) (int, error) {
	properties, err := source.ActiveProperties(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load active properties: %w", err)
	}

	if _, err := s.client.Index(s.index).DeleteAllDocuments(); err != nil {
		return 0, fmt.Errorf("failed to clear index: %w", err)
	}
	if err := s.IndexProperties(properties); err != nil {
		return 0, fmt.Errorf("failed to index properties: %w", err)
	}

	log.Printf("[Search] reindexed %d active properties", len(properties))
	return len(properties), nil
}

// Syncer binds a search client to the listing source it reindexes from
type Syncer struct {
	client *SearchClient
	source ActiveSource
}

func NewSyncer(client *SearchClient, source ActiveSource) *Syncer {
	return &Syncer{client: client, source: source}
}

// Reindex rebuilds the index from the bound source
func (s *Syncer) Reindex(ctx context.Context) (int, error) {
	return s.client.Reindex(ctx, s.source)
}

// SearchRequest represents search parameters
type SearchRequest struct {
	Query  string
	Limit  int64
	Offset int64
	Filter FilterParams
	Sort   []string
}

// SearchResult is one page of search hits
type SearchResult struct {
	Hits           []Document `json:"hits"`
	TotalHits      int64      `json:"total"`
	ProcessingTime int64      `json:"processingTimeMs"`
}

// Search runs a full-text query with optional filters
func (s *SearchClient) Search(req SearchRequest) (*SearchResult, error) {
	if req.Limit == 0 {
		req.Limit = 20
	}

	searchReq := &meilisearch.SearchRequest{
		Limit:  req.Limit,
		Offset: req.Offset,
	}
	if filter := req.Filter.Expression(); filter != "" {
		searchReq.Filter = filter
	}
	if len(req.Sort) > 0 {
		searchReq.Sort = req.Sort
	}

	searchRes, err := s.client.Index(s.index).Search(req.Query, searchReq)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(searchRes.Hits))
	for _, hit := range searchRes.Hits {
		doc, err := decodeHit(hit)
		if err != nil {
			log.Printf("[Search] skipping undecodable hit: %v", err)
			continue
		}
		docs = append(docs, doc)
	}

	return &SearchResult{
		Hits:           docs,
		TotalHits:      searchRes.EstimatedTotalHits,
		ProcessingTime: searchRes.ProcessingTimeMs,
	}, nil
}

// decodeHit converts a raw hit map to a Document
func decodeHit(hit interface{}) (Document, error) {
	var doc Document
	raw, err := json.Marshal(hit)
	if err != nil {
		return doc, err
	}
	err = json.Unmarshal(raw, &doc)
	return doc, err
}
