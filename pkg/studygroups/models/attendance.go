package models

import "time"

// AttendanceRecord captures whether a user actually attended a session,
// as opposed to their RSVP intent. Recorded by the group leader or an admin.
type AttendanceRecord struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	UserID       uint      `gorm:"not null;uniqueIndex:idx_session_attendance" json:"user_id"`
	SessionID    uint      `gorm:"not null;index;uniqueIndex:idx_session_attendance" json:"session_id"`
	Attended     bool      `gorm:"not null" json:"attended"`
	RecordedByID uint      `gorm:"not null" json:"recorded_by_id"`

	// Relationships
	User       User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Session    Session `gorm:"foreignKey:SessionID" json:"session,omitempty"`
	RecordedBy User    `gorm:"foreignKey:RecordedByID" json:"recorded_by,omitempty"`
}
