package notify

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/harperreed/nu-study-groups/pkg/studygroups/models"
	"github.com/wneessen/go-mail"
)

// MailNotifier delivers notifications over SMTP. RSVP confirmations and
// session reminders carry the .ics calendar artifact as an attachment.
type MailNotifier struct {
	client *mail.Client
	from   string
}

// NewMailNotifierFromEnv builds a MailNotifier from SMTP_* environment
// variables. Returns (nil, nil) when SMTP_HOST is unset so the caller can
// fall back to the log notifier.
func NewMailNotifierFromEnv() (*MailNotifier, error) {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		return nil, nil
	}

	port := 587
	if p := os.Getenv("SMTP_PORT"); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
		}
		port = parsed
	}

	opts := []mail.Option{mail.WithPort(port)}
	if user := os.Getenv("SMTP_USERNAME"); user != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(user),
			mail.WithPassword(os.Getenv("SMTP_PASSWORD")),
		)
	}

	client, err := mail.NewClient(host, opts...)
	if err != nil {
		return nil, err
	}

	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = "noreply@nu-study-groups.local"
	}

	return &MailNotifier{client: client, from: from}, nil
}

func (n *MailNotifier) Notify(kind Kind, recipient models.User, event Event) {
	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		log.Printf("notify: invalid from address: %v", err)
		return
	}
	if err := msg.To(recipient.Email); err != nil {
		log.Printf("notify: invalid recipient %q: %v", recipient.Email, err)
		return
	}

	msg.Subject(subjectFor(kind, event))
	msg.SetBodyString(mail.TypeTextPlain, bodyFor(kind, recipient, event))

	// Calendar artifact rides along on RSVP confirmations and reminders.
	if (kind == KindRSVPConfirmation || kind == KindSessionReminder) &&
		event.Session != nil && event.RSVP != nil {
		ical := CalendarEvent(event.Session, event.Group, event.Course, recipient, event.RSVP.Status)
		msg.AttachReader(fmt.Sprintf("session-%d.ics", event.Session.ID), strings.NewReader(ical))
	}

	if err := n.client.DialAndSend(msg); err != nil {
		log.Printf("notify: failed to send %s to %s: %v", kind, recipient.Email, err)
	}
}

func subjectFor(kind Kind, event Event) string {
	groupName := ""
	if event.Group != nil {
		groupName = event.Group.Name
	}
	switch kind {
	case KindMembershipRequested:
		return "New join request for " + groupName
	case KindMembershipApproved:
		return "You've been added to " + groupName
	case KindMembershipRejected:
		return "Update on your request for " + groupName
	case KindSessionCreated:
		return "New session scheduled for " + groupName
	case KindSessionReminder:
		if event.Session != nil {
			return "Reminder: " + event.Session.Title + " tomorrow"
		}
		return "Session reminder"
	case KindRSVPConfirmation:
		if event.Session != nil {
			return fmt.Sprintf("%s - %s", event.Session.Title, event.Session.Date.Format("January 2, 2006"))
		}
		return "RSVP confirmation"
	}
	return string(kind)
}

func bodyFor(kind Kind, recipient models.User, event Event) string {
	var lines []string
	lines = append(lines, "Hi "+recipient.Name+",", "")

	switch kind {
	case KindMembershipRequested:
		if event.Membership != nil && event.Group != nil {
			lines = append(lines, fmt.Sprintf("%s has requested to join %s.", event.Membership.User.Name, event.Group.Name))
		}
	case KindMembershipApproved:
		if event.Group != nil {
			lines = append(lines, "Your request to join "+event.Group.Name+" has been approved.")
		}
	case KindMembershipRejected:
		if event.Group != nil {
			lines = append(lines, "Your request to join "+event.Group.Name+" was not approved.")
		}
	case KindSessionCreated, KindRSVPConfirmation, KindSessionReminder:
		if event.Session != nil {
			lines = append(lines,
				event.Session.Title,
				event.Session.Date.Format("Monday, January 2, 2006"),
				fmt.Sprintf("%s - %s",
					event.Session.StartTime.Format("3:04 PM"),
					event.Session.EndTime.Format("3:04 PM")))
			if event.Session.Location != "" {
				lines = append(lines, "Location: "+event.Session.Location)
			}
			if event.Session.MeetingLink != "" {
				lines = append(lines, "Meeting link: "+event.Session.MeetingLink)
			}
		}
	}

	return strings.Join(lines, "\n")
}
