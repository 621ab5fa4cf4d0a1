package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PropertyImage is a stored image file attached to a property
type PropertyImage struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	PropertyID string    `gorm:"type:varchar(36);not null;index" json:"propertyId"`
	URL        string    `gorm:"type:varchar(512);not null" json:"url"`
	Order      int       `gorm:"column:sort_order;not null;default:0" json:"order"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName specifies the table name for PropertyImage
func (PropertyImage) TableName() string {
	return "property_images"
}

func (img *PropertyImage) BeforeCreate(tx *gorm.DB) error {
	if img.ID == "" {
		img.ID = uuid.NewString()
	}
	return nil
}
