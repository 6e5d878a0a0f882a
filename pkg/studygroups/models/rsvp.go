package models

import "time"

// RSVPStatus represents a user's attendance intent for a session
type RSVPStatus string

const (
	RSVPGoing    RSVPStatus = "going"
	RSVPMaybe    RSVPStatus = "maybe"
	RSVPNotGoing RSVPStatus = "not_going"
)

// AttendingStatuses are the statuses that reserve a capacity slot. A maybe
// holds a provisional seat alongside going.
var AttendingStatuses = []RSVPStatus{RSVPGoing, RSVPMaybe}

// SessionRSVP records one user's attendance intent for one session. The
// unique index makes a second RSVP for the same (user, session) pair a
// storage-level conflict; changing intent is an update to the existing row.
//
// RSVPs are hard-deleted so a removed RSVP frees the unique slot.
type SessionRSVP struct {
	ID        uint       `gorm:"primarykey" json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	UserID    uint       `gorm:"not null;uniqueIndex:idx_session_rsvp" json:"user_id"`
	SessionID uint       `gorm:"not null;index;uniqueIndex:idx_session_rsvp" json:"session_id"`
	Status    RSVPStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	RSVPAt    time.Time  `gorm:"not null" json:"rsvp_at"`

	// Relationships
	User    User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Session Session `gorm:"foreignKey:SessionID" json:"session,omitempty"`
}
