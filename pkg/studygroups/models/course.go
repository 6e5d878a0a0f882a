package models

import (
	"time"

	"gorm.io/gorm"
)

// Course represents an academic course offering. Offerings are unique by
// (code, semester, year) so the same course code can recur across terms.
type Course struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Name        string         `gorm:"not null" json:"name"`
	Code        string         `gorm:"not null;uniqueIndex:idx_course_offering" json:"code"`
	Description string         `json:"description"`
	Semester    string         `gorm:"not null;uniqueIndex:idx_course_offering" json:"semester"`
	Year        int            `gorm:"not null;uniqueIndex:idx_course_offering" json:"year"`

	// Relationships
	StudyGroups []StudyGroup    `gorm:"foreignKey:CourseID" json:"study_groups,omitempty"`
	Teachers    []CourseTeacher `gorm:"foreignKey:CourseID" json:"teachers,omitempty"`
}

// CourseTeacher assigns a teacher to a course. Managed by admins.
type CourseTeacher struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	CourseID  uint      `gorm:"not null;uniqueIndex:idx_course_teacher" json:"course_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_course_teacher" json:"user_id"`

	// Relationships
	Course Course `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	User   User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
