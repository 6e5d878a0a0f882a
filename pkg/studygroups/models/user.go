package models

import (
	"time"

	"gorm.io/gorm"
)

// Role represents a user's platform-wide role
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// ProviderLocal is the pseudo-provider for password-based accounts.
// OAuth accounts carry the slug of the identity provider instead.
const ProviderLocal = "local"

// User represents an authenticated account. Users are keyed by email
// globally and by (provider, uid) per identity provider.
type User struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	Name         string         `gorm:"not null" json:"name"`
	Provider     string         `gorm:"not null;uniqueIndex:idx_provider_uid" json:"provider"`
	UID          string         `gorm:"not null;uniqueIndex:idx_provider_uid" json:"-"`
	PasswordHash string         `json:"-"` // Empty for OAuth-only users
	Role         Role           `gorm:"type:varchar(20);not null;default:'student'" json:"role"`

	// Relationships
	Memberships []StudyGroupMembership `gorm:"foreignKey:UserID" json:"memberships,omitempty"`
	RSVPs       []SessionRSVP          `gorm:"foreignKey:UserID" json:"rsvps,omitempty"`
}

// IsAdmin reports whether the user holds the admin role. Safe on nil.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
