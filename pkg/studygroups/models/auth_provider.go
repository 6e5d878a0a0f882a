package models

import (
	"time"

	"gorm.io/gorm"
)

// AuthProvider represents an OIDC identity provider configuration.
// Users created through a provider carry its slug as their Provider value
// and the OIDC subject claim as their UID.
type AuthProvider struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Name         string         `gorm:"uniqueIndex;not null" json:"name"` // Display name (e.g. "Google")
	Slug         string         `gorm:"uniqueIndex;not null" json:"slug"` // URL-safe identifier
	Issuer       string         `gorm:"not null" json:"issuer"`           // OIDC issuer URL
	ClientID     string         `gorm:"not null" json:"client_id"`
	ClientSecret string         `gorm:"not null" json:"-"`
	Scopes       string         `gorm:"default:'openid profile email'" json:"scopes"`
	Enabled      bool           `gorm:"default:true" json:"enabled"`
}
