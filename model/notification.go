package model

import (
	"time"

	"gorm.io/datatypes"
)

type NotificationType string

const (
	NotificationTypeResourceApproved NotificationType = "resource_approved"
	NotificationTypeResourceRejected NotificationType = "resource_rejected"
	NotificationTypeBadgeEarned      NotificationType = "badge_earned"
	NotificationTypeMissionComplete  NotificationType = "mission_completed"
	NotificationTypeSystem           NotificationType = "system"
)

// Notification is an inbox entry for a user
type Notification struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	UserID     uint             `gorm:"not null;index" json:"user_id"`
	ResourceID *uint            `gorm:"index" json:"resource_id,omitempty"`
	Type       NotificationType `gorm:"type:varchar(30);not null" json:"type"`
	Title      string           `gorm:"type:varchar(255);not null" json:"title"`
	Message    string           `gorm:"type:text" json:"message"`
	Read       bool             `gorm:"not null;default:false;index" json:"read"`
	Metadata   datatypes.JSON   `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt  time.Time        `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`

	Resource *Resource `gorm:"foreignKey:ResourceID;constraint:OnDelete:SET NULL" json:"-"`
}

// NotificationMetadata is the typed form of Notification.Metadata
type NotificationMetadata struct {
	ResourceTitle string `json:"resource_title,omitempty"`
	AdminComments string `json:"admin_comments,omitempty"`
	CoinsAwarded  int    `json:"coins_awarded,omitempty"`
	BadgeKey      string `json:"badge_key,omitempty"`
}
