package models

import "time"

// DeleteLog records a property removed through the API
type DeleteLog struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PropertyID string    `gorm:"type:varchar(36);not null;index" json:"propertyId"`
	Title      string    `gorm:"type:varchar(100)" json:"title"`
	OwnerID    string    `gorm:"type:varchar(64);not null" json:"ownerId"`
	ActorID    string    `gorm:"type:varchar(64);not null" json:"actorId"`
	ImageCount int       `gorm:"not null;default:0" json:"imageCount"`
	Reason     string    `gorm:"type:varchar(50);not null" json:"reason"`
	DeletedAt  time.Time `gorm:"not null;autoCreateTime;index" json:"deletedAt"`
}

// TableName specifies the table name
func (DeleteLog) TableName() string {
	return "delete_logs"
}

// DeleteReason constants
const (
	DeleteReasonOwner = "owner_deletion"
	DeleteReasonAdmin = "admin_deletion"
)
