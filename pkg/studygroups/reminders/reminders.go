package reminders

import (
	"log"
	"time"

	"github.com/harperreed/nu-study-groups/pkg/studygroups/models"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/notify"
	"gorm.io/gorm"
)

// Sweeper sends reminder notifications for tomorrow's sessions to everyone
// who RSVP'd going. It is intended to run once a day from the scheduler.
type Sweeper struct {
	db       *gorm.DB
	notifier notify.Notifier
}

// NewSweeper creates a reminder sweeper
func NewSweeper(db *gorm.DB, notifier notify.Notifier) *Sweeper {
	return &Sweeper{db: db, notifier: notifier}
}

// SessionsOn returns the sessions scheduled on the given calendar day,
// with their group, course, and creator loaded.
func SessionsOn(db *gorm.DB, day time.Time) ([]models.Session, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	var sessions []models.Session
	err := db.Preload("StudyGroup").Preload("StudyGroup.Course").Preload("StudyGroup.Creator").
		Where("date >= ? AND date < ?", start, end).
		Find(&sessions).Error
	return sessions, err
}

// GoingRSVPs returns a session's going RSVPs with their users loaded.
// Maybe and not_going RSVPs are not reminded.
func GoingRSVPs(db *gorm.DB, sessionID uint) ([]models.SessionRSVP, error) {
	var rsvps []models.SessionRSVP
	err := db.Preload("User").
		Where("session_id = ? AND status = ?", sessionID, models.RSVPGoing).
		Find(&rsvps).Error
	return rsvps, err
}

// Run sends reminders for every session happening tomorrow.
func (s *Sweeper) Run() {
	tomorrow := time.Now().AddDate(0, 0, 1)

	sessions, err := SessionsOn(s.db, tomorrow)
	if err != nil {
		log.Printf("reminders: failed to load sessions: %v", err)
		return
	}

	for i := range sessions {
		session := &sessions[i]

		rsvps, err := GoingRSVPs(s.db, session.ID)
		if err != nil {
			log.Printf("reminders: failed to load RSVPs for session %d: %v", session.ID, err)
			continue
		}

		for j := range rsvps {
			rsvp := &rsvps[j]
			s.notifier.Notify(notify.KindSessionReminder, rsvp.User, notify.Event{
				Course:  &session.StudyGroup.Course,
				Group:   &session.StudyGroup,
				Session: session,
				RSVP:    rsvp,
			})
		}

		log.Printf("reminders: session %d (%s) reminded %d attendees", session.ID, session.Title, len(rsvps))
	}
}
