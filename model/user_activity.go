package model

import (
	"time"
)

type ActivityType string

const (
	ActivityTypeView     ActivityType = "view"
	ActivityTypeDownload ActivityType = "download"
	ActivityTypeUpload   ActivityType = "upload"
	ActivityTypeRate     ActivityType = "rate"
	ActivityTypeSave     ActivityType = "save"
)

// UserActivity records resource interactions; it feeds missions and badge evaluation
type UserActivity struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	UserID       uint         `gorm:"not null;index:idx_user_activity" json:"user_id"`
	ResourceID   uint         `gorm:"index" json:"resource_id"`
	ActivityType ActivityType `gorm:"type:varchar(20);not null;index:idx_activity_type" json:"activity_type"`
	CreatedAt    time.Time    `gorm:"index:idx_activity_created_at" json:"created_at"`
}

func (UserActivity) TableName() string {
	return "user_activities"
}
