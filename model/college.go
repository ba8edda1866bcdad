package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// College is the top level of the academic hierarchy
type College struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"not null;uniqueIndex" json:"name"`
	Location    string         `gorm:"type:varchar(255)" json:"location"`
	Established int            `json:"established,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Courses []Course `gorm:"foreignKey:CollegeID;constraint:OnDelete:CASCADE" json:"courses,omitempty"`
}

// Course is a degree programme offered by a college
type Course struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CollegeID uint           `gorm:"not null;index" json:"college_id"`
	Name      string         `gorm:"not null" json:"name"`
	Code      string         `gorm:"type:varchar(30)" json:"code"`
	Duration  int            `gorm:"not null;default:4" json:"duration"` // years
	Seats     int            `json:"seats,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	College *College `gorm:"foreignKey:CollegeID;constraint:OnDelete:CASCADE" json:"college,omitempty"`
	Years   []Year   `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"years,omitempty"`
}

// Year is one academic year of a course. Semesters holds display labels
// such as "Semester 5"; TotalSemesters, when set, overrides the default of two.
type Year struct {
	ID             uint                        `gorm:"primaryKey" json:"id"`
	CourseID       uint                        `gorm:"not null;index" json:"course_id"`
	YearNumber     int                         `gorm:"not null" json:"year_number"`
	Semesters      datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"semesters"`
	TotalSemesters *int                        `json:"total_semesters,omitempty"`
	CreatedAt      time.Time                   `json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`

	Course *Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"course,omitempty"`
}

// DefaultSemestersPerYear applies when a Year has no TotalSemesters
const DefaultSemestersPerYear = 2
