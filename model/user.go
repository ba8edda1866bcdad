package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

const (
	RoleStudent    = "student"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// MetadataSemester is the User.Metadata key written when onboarding completes
const MetadataSemester = "semester"

// User is the authentication identity. Everything shown to other users lives on Profile.
type User struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	DeletedAt       gorm.DeletedAt    `gorm:"index" json:"-"`
	Email           string            `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash    string            `json:"-"` // empty for Google accounts
	Provider        string            `gorm:"type:varchar(20);not null;default:'password'" json:"provider"`
	ProviderSubject string            `gorm:"type:varchar(255);index" json:"-"`
	TokenVersion    int               `gorm:"default:0" json:"-"` // Increment to invalidate all user tokens
	Metadata        datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
}

// Profile is the public face of a user. Its ID equals the User ID.
// CollegeID stays nil until onboarding completes.
type Profile struct {
	ID        uint      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	FullName  string    `gorm:"type:varchar(255)" json:"full_name"`
	CollegeID *uint     `gorm:"index" json:"college_id"`
	CourseID  *uint     `gorm:"index" json:"course_id"`
	YearID    *uint     `json:"year_id"`
	Role      string    `gorm:"type:varchar(20);not null;default:'student'" json:"role"`
	Coins     int       `gorm:"not null;default:0" json:"coins"`
	XP        int       `gorm:"not null;default:0" json:"xp"`
	AvatarURL string    `gorm:"type:text" json:"avatar_url,omitempty"`
	IsBanned  bool      `gorm:"not null;default:false" json:"is_banned"`
	BanReason string    `gorm:"type:text" json:"ban_reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsAdmin covers both admin and superadmin
func (p *Profile) IsAdmin() bool {
	return p.Role == RoleAdmin || p.Role == RoleSuperAdmin
}

// Onboarded reports whether the academic selection was saved
func (p *Profile) Onboarded() bool {
	return p.CollegeID != nil
}
