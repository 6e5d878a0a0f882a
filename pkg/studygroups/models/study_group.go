package models

import (
	"time"

	"gorm.io/gorm"
)

// GroupType distinguishes teacher-led groups from peer-organized ones
type GroupType string

const (
	GroupTypeOfficial GroupType = "official"
	GroupTypePeer     GroupType = "peer"
)

// GroupStatus represents a study group's lifecycle state
type GroupStatus string

const (
	GroupStatusActive   GroupStatus = "active"
	GroupStatusArchived GroupStatus = "archived"
)

// StudyGroup organizes study sessions within a course. The creator leads
// the group: they resolve join requests and manage its sessions.
type StudyGroup struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	CourseID    uint           `gorm:"not null;index" json:"course_id"`
	CreatorID   uint           `gorm:"not null;index" json:"creator_id"`
	Name        string         `gorm:"not null" json:"name"`
	Description string         `json:"description"`
	GroupType   GroupType      `gorm:"type:varchar(20);not null;default:'peer';index" json:"group_type"`
	Status      GroupStatus    `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`

	// Relationships
	Course      Course                 `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	Creator     User                   `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	Memberships []StudyGroupMembership `gorm:"foreignKey:StudyGroupID" json:"memberships,omitempty"`
	Sessions    []Session              `gorm:"foreignKey:StudyGroupID" json:"sessions,omitempty"`
}
