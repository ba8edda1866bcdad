package model

import (
	"time"
)

type ResourceType string

const (
	ResourceTypeNotes              ResourceType = "notes"
	ResourceTypePYQ                ResourceType = "pyq"
	ResourceTypePresentation       ResourceType = "presentation"
	ResourceTypeLink               ResourceType = "link"
	ResourceTypeVideo              ResourceType = "video"
	ResourceTypeImportantQuestions ResourceType = "important_questions"
)

// IsExternal reports whether the resource points at a URL instead of an uploaded file
func (t ResourceType) IsExternal() bool {
	return t == ResourceTypeLink || t == ResourceTypeVideo
}

type ResourceStatus string

const (
	ResourceStatusPending  ResourceStatus = "pending"
	ResourceStatusApproved ResourceStatus = "approved"
	ResourceStatusRejected ResourceStatus = "rejected"
)

// Resource is a shared study material. Only approved rows are visible to
// other students; the uploader always sees their own.
type Resource struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Title         string         `gorm:"type:varchar(255);not null" json:"title"`
	Description   string         `gorm:"type:text" json:"description"`
	Type          ResourceType   `gorm:"type:varchar(30);not null;index" json:"type"`
	Subject       string         `gorm:"type:varchar(255)" json:"subject"`
	CollegeID     uint           `gorm:"not null;index" json:"college_id"`
	CourseID      uint           `gorm:"not null;index" json:"course_id"`
	YearID        *uint          `gorm:"index" json:"year_id,omitempty"`
	UploaderID    uint           `gorm:"not null;index" json:"uploader_id"`
	Status        ResourceStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Downloads     int            `gorm:"not null;default:0" json:"downloads"`
	Rating        float64        `gorm:"not null;default:0" json:"rating"`
	RatingCount   int            `gorm:"not null;default:0" json:"rating_count"`
	AdminComments string         `gorm:"type:text" json:"admin_comments,omitempty"`
	FileURL       string         `gorm:"type:text" json:"file_url,omitempty"`
	StorageKey    string         `gorm:"type:text" json:"-"`
	ExternalURL   string         `gorm:"type:text" json:"external_url,omitempty"`
	FileSize      int64          `json:"file_size,omitempty"`
	PageCount     int            `json:"page_count,omitempty"`
	ReviewedBy    *uint          `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time     `json:"reviewed_at,omitempty"`
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`

	College  *College `gorm:"foreignKey:CollegeID;constraint:OnDelete:CASCADE" json:"-"`
	Course   *Course  `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
	Year     *Year    `gorm:"foreignKey:YearID;constraint:OnDelete:SET NULL" json:"-"`
	Uploader *User    `gorm:"foreignKey:UploaderID;constraint:OnDelete:CASCADE" json:"-"`
}

// DownloadURL is the file URL for uploads and the external URL for links and videos
func (r *Resource) DownloadURL() string {
	if r.ExternalURL != "" {
		return r.ExternalURL
	}
	return r.FileURL
}

// ResourceRating is one user's star rating of a resource
type ResourceRating struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ResourceID uint      `gorm:"not null;uniqueIndex:idx_rating_resource_user" json:"resource_id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_rating_resource_user" json:"user_id"`
	Stars      int       `gorm:"not null" json:"stars"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Resource *Resource `gorm:"foreignKey:ResourceID;constraint:OnDelete:CASCADE" json:"-"`
}

// SavedResource bookmarks a resource for a user
type SavedResource struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_saved_user_resource" json:"user_id"`
	ResourceID uint      `gorm:"not null;uniqueIndex:idx_saved_user_resource" json:"resource_id"`
	CreatedAt  time.Time `json:"created_at"`

	Resource *Resource `gorm:"foreignKey:ResourceID;constraint:OnDelete:CASCADE" json:"resource,omitempty"`
}
