package rsvps

import (
	"errors"
	"strings"
	"time"

	"github.com/harperreed/nu-study-groups/pkg/studygroups/models"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateRSVP is returned when the user already has an RSVP for the
	// session; intent changes are updates, never a second row.
	ErrDuplicateRSVP = errors.New("an RSVP for this session already exists")
	// ErrSessionFull is returned when a going transition would exceed the
	// session's capacity.
	ErrSessionFull = errors.New("session is at capacity")
)

// AttendingCount returns the number of RSVPs holding a capacity slot
// (going or maybe; a maybe reserves a provisional seat).
func AttendingCount(db *gorm.DB, sessionID uint) (int64, error) {
	var count int64
	err := db.Model(&models.SessionRSVP{}).
		Where("session_id = ? AND status IN ?", sessionID, models.AttendingStatuses).
		Count(&count).Error
	return count, err
}

// SpotsRemaining returns how many capacity slots are left, or nil when the
// session is uncapped. Never negative.
func SpotsRemaining(db *gorm.DB, session *models.Session) (*int, error) {
	if session.MaxCapacity == nil {
		return nil, nil
	}
	count, err := AttendingCount(db, session.ID)
	if err != nil {
		return nil, err
	}
	left := *session.MaxCapacity - int(count)
	if left < 0 {
		left = 0
	}
	return &left, nil
}

// CreateRSVP records a user's initial attendance intent. A going intent is
// capacity-checked inside the same transaction as the insert so concurrent
// creates cannot overshoot the limit; maybe and not_going are never
// capacity-checked on create. The unique (user, session) index backstops
// duplicate races.
func CreateRSVP(db *gorm.DB, userID uint, session *models.Session, status models.RSVPStatus) (*models.SessionRSVP, error) {
	rsvp := models.SessionRSVP{
		UserID:    userID,
		SessionID: session.ID,
		Status:    status,
		RSVPAt:    time.Now(),
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if status == models.RSVPGoing && session.MaxCapacity != nil {
			count, err := AttendingCount(tx, session.ID)
			if err != nil {
				return err
			}
			if count >= int64(*session.MaxCapacity) {
				return ErrSessionFull
			}
		}
		if err := tx.Create(&rsvp).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrDuplicateRSVP
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rsvp, nil
}

// UpdateRSVPStatus changes an existing RSVP's intent. Only the transition
// into going from a non-going state is capacity-gated; leaving going (or
// moving between maybe and not_going) is always allowed, so a user who is
// attending can never be trapped on a full session.
func UpdateRSVPStatus(db *gorm.DB, rsvp *models.SessionRSVP, session *models.Session, newStatus models.RSVPStatus) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if newStatus == models.RSVPGoing && rsvp.Status != models.RSVPGoing && session.MaxCapacity != nil {
			count, err := AttendingCount(tx, session.ID)
			if err != nil {
				return err
			}
			if count >= int64(*session.MaxCapacity) {
				return ErrSessionFull
			}
		}
		if err := tx.Model(&models.SessionRSVP{}).
			Where("id = ?", rsvp.ID).
			Update("status", newStatus).Error; err != nil {
			return err
		}
		rsvp.Status = newStatus
		return nil
	})
}

// DeleteRSVP removes an RSVP outright, freeing its capacity slot. RSVPs are
// hard-deleted so the (user, session) unique slot opens up again.
func DeleteRSVP(db *gorm.DB, rsvp *models.SessionRSVP) error {
	return db.Delete(rsvp).Error
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}
