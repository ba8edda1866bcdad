package model

import (
	"time"
)

// Mission is a repeatable daily goal, e.g. "download 3 resources"
type Mission struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	Key         string       `gorm:"type:varchar(50);uniqueIndex;not null" json:"key"`
	Title       string       `gorm:"type:varchar(255);not null" json:"title"`
	Description string       `gorm:"type:text" json:"description"`
	Action      ActivityType `gorm:"type:varchar(20);not null" json:"action"`
	Target      int          `gorm:"not null;default:1" json:"target"`
	CoinReward  int          `gorm:"not null;default:0" json:"coin_reward"`
	XPReward    int          `gorm:"not null;default:0" json:"xp_reward"`
	Active      bool         `gorm:"not null" json:"active"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// MissionAssignment is a user's copy of a mission for one day. ResetAt is the
// next UTC midnight after the assignment was created.
type MissionAssignment struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;uniqueIndex:idx_assignment_user_mission_reset" json:"user_id"`
	MissionID uint       `gorm:"not null;uniqueIndex:idx_assignment_user_mission_reset" json:"mission_id"`
	Progress  int        `gorm:"not null;default:0" json:"progress"`
	Completed bool       `gorm:"not null;default:false" json:"completed"`
	Claimed   bool       `gorm:"not null;default:false" json:"claimed"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
	ResetAt   time.Time  `gorm:"not null;uniqueIndex:idx_assignment_user_mission_reset;index" json:"reset_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	Mission *Mission `gorm:"foreignKey:MissionID;constraint:OnDelete:CASCADE" json:"mission,omitempty"`
}

type BadgeCriteria string

const (
	BadgeCriteriaCoins     BadgeCriteria = "coins"
	BadgeCriteriaUploads   BadgeCriteria = "uploads"
	BadgeCriteriaDownloads BadgeCriteria = "downloads"
)

type Badge struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	Key         string        `gorm:"type:varchar(50);uniqueIndex;not null" json:"key"`
	Name        string        `gorm:"type:varchar(100);not null" json:"name"`
	Description string        `gorm:"type:text" json:"description"`
	Icon        string        `gorm:"type:varchar(50)" json:"icon"`
	Criteria    BadgeCriteria `gorm:"type:varchar(20);not null" json:"criteria"`
	Threshold   int           `gorm:"not null" json:"threshold"`
	CreatedAt   time.Time     `json:"created_at"`
}

type UserBadge struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_user_badge" json:"user_id"`
	BadgeID   uint      `gorm:"not null;uniqueIndex:idx_user_badge" json:"badge_id"`
	AwardedAt time.Time `json:"awarded_at"`

	Badge *Badge `gorm:"foreignKey:BadgeID;constraint:OnDelete:CASCADE" json:"badge,omitempty"`
}
