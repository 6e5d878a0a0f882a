package notify

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/models"
)

// CalendarEvent renders an iCalendar document for a session, addressed to
// one attendee with their RSVP status mapped to a PARTSTAT. The group
// creator is the organizer. Returns the serialized .ics content.
func CalendarEvent(session *models.Session, group *models.StudyGroup, course *models.Course, attendee models.User, status models.RSVPStatus) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodRequest)

	// UID is stable per (session, attendee) so re-sent invites update the
	// same calendar entry instead of duplicating it.
	event := cal.AddEvent(fmt.Sprintf("session-%d-user-%d@nu-study-groups", session.ID, attendee.ID))
	event.SetDtStampTime(time.Now())
	event.SetStartAt(session.StartsAt())
	event.SetEndAt(session.EndsAt())
	event.SetSummary(session.Title)
	if session.Location != "" {
		event.SetLocation(session.Location)
	}
	event.SetDescription(eventDescription(session, group, course))

	if group != nil && group.Creator.Email != "" {
		event.SetOrganizer("mailto:"+group.Creator.Email, ics.WithCN(group.Creator.Name))
	}
	event.AddAttendee(attendee.Email, partstat(status), ics.WithCN(attendee.Name))

	return cal.Serialize()
}

func eventDescription(session *models.Session, group *models.StudyGroup, course *models.Course) string {
	var parts []string
	if session.Description != "" {
		parts = append(parts, session.Description)
	}
	if group != nil {
		parts = append(parts, "Study Group: "+group.Name)
	}
	if course != nil {
		parts = append(parts, fmt.Sprintf("Course: %s - %s", course.Code, course.Name))
	}
	if session.MeetingLink != "" {
		parts = append(parts, "Meeting Link: "+session.MeetingLink)
	}
	return strings.Join(parts, "\n")
}

func partstat(status models.RSVPStatus) ics.PropertyParameter {
	switch status {
	case models.RSVPGoing:
		return ics.ParticipationStatusAccepted
	case models.RSVPMaybe:
		return ics.ParticipationStatusTentative
	case models.RSVPNotGoing:
		return ics.ParticipationStatusDeclined
	default:
		return ics.ParticipationStatusNeedsAction
	}
}
