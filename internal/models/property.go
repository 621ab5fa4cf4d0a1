package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Property is a real-estate listing owned by a single user.
type Property struct {
	ID     string `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID string `gorm:"type:varchar(64);not null;index" json:"userId"`

	Type        PropertyType `gorm:"type:varchar(20);not null;index" json:"type"`
	Title       string       `gorm:"type:varchar(100);not null" json:"title"`
	Description string       `gorm:"type:text;not null" json:"description"`
	Price       float64      `gorm:"type:decimal(10,2);not null;index" json:"price"`
	Area        float64      `gorm:"type:decimal(10,2);not null;index" json:"area"`
	Rooms       int          `gorm:"not null" json:"rooms"`
	Bathrooms   int          `gorm:"not null" json:"bathrooms"`

	// Location
	Address    string  `gorm:"type:varchar(255);not null" json:"address"`
	City       string  `gorm:"type:varchar(100);not null;index" json:"city"`
	PostalCode string  `gorm:"type:varchar(20);not null;index" json:"postalCode"`
	Latitude   float64 `gorm:"type:decimal(10,8);not null" json:"latitude"`
	Longitude  float64 `gorm:"type:decimal(11,8);not null" json:"longitude"`

	Features datatypes.JSONSlice[string] `json:"features"`

	// Moderation gate; only active listings are public.
	Status PropertyStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index:idx_properties_created_at,sort:desc" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updatedAt"`

	Images []PropertyImage `gorm:"foreignKey:PropertyID;references:ID;constraint:OnDelete:CASCADE" json:"images,omitempty"`
}

// PropertyType classifies a listing.
type PropertyType string

const (
	PropertyTypeApartment  PropertyType = "apartment"
	PropertyTypeHouse      PropertyType = "house"
	PropertyTypeLand       PropertyType = "land"
	PropertyTypeCommercial PropertyType = "commercial"
	PropertyTypeOther      PropertyType = "other"
)

// PropertyStatus is the moderation lifecycle of a listing.
type PropertyStatus string

const (
	PropertyStatusPending  PropertyStatus = "pending"
	PropertyStatusActive   PropertyStatus = "active"
	PropertyStatusSold     PropertyStatus = "sold"
	PropertyStatusArchived PropertyStatus = "archived"
)

// AllPropertyStatuses lists every status in lifecycle order.
var AllPropertyStatuses = []PropertyStatus{
	PropertyStatusPending,
	PropertyStatusActive,
	PropertyStatusSold,
	PropertyStatusArchived,
}

func (Property) TableName() string {
	return "properties"
}

// BeforeCreate assigns a UUID when the caller did not set one.
func (p *Property) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// IsActive reports whether the listing is publicly visible.
func (p *Property) IsActive() bool {
	return p.Status == PropertyStatusActive
}

// IsOwnedBy reports whether userID created the listing.
func (p *Property) IsOwnedBy(userID string) bool {
	return userID != "" && p.UserID == userID
}
