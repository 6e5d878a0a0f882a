// Package notify delivers the side-effecting hooks fired by successful
// state transitions. Delivery is fire-and-forget: a failed or slow notifier
// must never roll back or delay a committed transition, so handlers go
// through the async Dispatcher.
package notify

import (
	"log"

	"github.com/harperreed/nu-study-groups/pkg/studygroups/models"
)

// Kind identifies the notification being sent
type Kind string

const (
	KindMembershipRequested Kind = "membership_requested"
	KindMembershipApproved  Kind = "membership_approved"
	KindMembershipRejected  Kind = "membership_rejected"
	KindRSVPConfirmation    Kind = "rsvp_confirmation"
	KindSessionCreated      Kind = "session_created"
	KindSessionReminder     Kind = "session_reminder"
)

// Event carries the entities a notification is about. Fields are populated
// as relevant for the kind; absent ones are nil.
type Event struct {
	Course     *models.Course
	Group      *models.StudyGroup
	Session    *models.Session
	Membership *models.StudyGroupMembership
	RSVP       *models.SessionRSVP
}

// Notifier dispatches a notification to a recipient. Implementations must
// not panic; errors are their own to log.
type Notifier interface {
	Notify(kind Kind, recipient models.User, event Event)
}

// LogNotifier writes notifications to the process log. It is the default
// when no SMTP configuration is present.
type LogNotifier struct{}

func (LogNotifier) Notify(kind Kind, recipient models.User, event Event) {
	log.Printf("notify %s -> %s", kind, recipient.Email)
}

type envelope struct {
	kind      Kind
	recipient models.User
	event     Event
}

// Dispatcher wraps a Notifier with a buffered channel and a single worker
// goroutine so callers return immediately. When the buffer is full the
// notification is dropped with a log line rather than blocking the caller.
type Dispatcher struct {
	inner Notifier
	ch    chan envelope
	done  chan struct{}
}

// NewDispatcher starts the delivery worker.
func NewDispatcher(inner Notifier, buffer int) *Dispatcher {
	d := &Dispatcher{
		inner: inner,
		ch:    make(chan envelope, buffer),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for env := range d.ch {
		d.inner.Notify(env.kind, env.recipient, env.event)
	}
}

// Notify enqueues a notification for asynchronous delivery.
func (d *Dispatcher) Notify(kind Kind, recipient models.User, event Event) {
	select {
	case d.ch <- envelope{kind: kind, recipient: recipient, event: event}:
	default:
		log.Printf("notify: queue full, dropping %s for %s", kind, recipient.Email)
	}
}

// Close drains the queue and stops the worker.
func (d *Dispatcher) Close() {
	close(d.ch)
	<-d.done
}
