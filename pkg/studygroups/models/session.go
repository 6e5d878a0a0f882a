package models

import (
	"time"

	"gorm.io/gorm"
)

// Session is a scheduled study group meeting. MaxCapacity of nil means
// unbounded attendance.
type Session struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	StudyGroupID uint           `gorm:"not null;index" json:"study_group_id"`
	Title        string         `gorm:"not null" json:"title"`
	Description  string         `json:"description"`
	Location     string         `json:"location"`
	MeetingLink  string         `json:"meeting_link"`
	Date         time.Time      `gorm:"not null;index" json:"date"`
	StartTime    time.Time      `gorm:"not null" json:"start_time"`
	EndTime      time.Time      `gorm:"not null" json:"end_time"`
	MaxCapacity  *int           `json:"max_capacity,omitempty"`

	// Relationships
	StudyGroup        StudyGroup         `gorm:"foreignKey:StudyGroupID" json:"study_group,omitempty"`
	RSVPs             []SessionRSVP      `gorm:"foreignKey:SessionID" json:"rsvps,omitempty"`
	AttendanceRecords []AttendanceRecord `gorm:"foreignKey:SessionID" json:"attendance_records,omitempty"`
}

// StartsAt combines the session date with the start time of day.
func (s *Session) StartsAt() time.Time {
	return combineDateTime(s.Date, s.StartTime)
}

// EndsAt combines the session date with the end time of day.
func (s *Session) EndsAt() time.Time {
	return combineDateTime(s.Date, s.EndTime)
}

func combineDateTime(date, clock time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0, date.Location())
}
