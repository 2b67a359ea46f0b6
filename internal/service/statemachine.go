package service

import (
	"time"

	"github.com/Thomasfairey/compliance-connect-sub003/internal/models"
)

// TimestampField names the booking lifecycle column a transition stamps.
type TimestampField string

const (
	StampNone      TimestampField = ""
	StampAccepted  TimestampField = "accepted_at"
	StampEnRoute   TimestampField = "en_route_at"
	StampArrived   TimestampField = "arrived_at"
	StampStarted   TimestampField = "started_at"
	StampCompleted TimestampField = "completed_at"
	StampCancelled TimestampField = "cancelled_at"
)

// StatusChange is the validated outcome of one lifecycle action: what to
// write, conditioned on the booking still being in ExpectedFrom.
type StatusChange struct {
	ExpectedFrom  models.BookingStatus
	To            models.BookingStatus
	Action        models.BookingAction
	ActorID       string
	ClearEngineer bool
	Stamp         TimestampField
	At            time.Time
}

type transitionRule struct {
	from  []models.BookingStatus
	to    models.BookingStatus
	stamp TimestampField
}

var transitions = map[models.BookingAction]transitionRule{
	models.ActionAccept:      {from: []models.BookingStatus{models.StatusPending}, to: models.StatusConfirmed, stamp: StampAccepted},
	models.ActionStartTravel: {from: []models.BookingStatus{models.StatusConfirmed}, to: models.StatusEnRoute, stamp: StampEnRoute},
	models.ActionArrive:      {from: []models.BookingStatus{models.StatusEnRoute}, to: models.StatusOnSite, stamp: StampArrived},
	models.ActionStartWork:   {from: []models.BookingStatus{models.StatusOnSite}, to: models.StatusInProgress, stamp: StampStarted},
	models.ActionComplete:    {from: []models.BookingStatus{models.StatusInProgress}, to: models.StatusCompleted, stamp: StampCompleted},
	models.ActionDecline:     {from: []models.BookingStatus{models.StatusConfirmed}, to: models.StatusDeclined},
	models.ActionCancel:      {from: []models.BookingStatus{models.StatusPending, models.StatusConfirmed, models.StatusInProgress}, to: models.StatusCancelled, stamp: StampCancelled},
	models.ActionRevisit:     {from: []models.BookingStatus{models.StatusInProgress}, to: models.StatusRequiresRevisit},
	models.ActionReopen:      {from: []models.BookingStatus{models.StatusCancelled, models.StatusDeclined, models.StatusRequiresRevisit}, to: models.StatusPending},
}

// PlanTransition validates one action against the booking's current status
// and returns the change to apply. It performs no mutation itself; the
// store applies the change conditioned on the status still matching.
func PlanTransition(booking models.Booking, action models.BookingAction, actorID string, now time.Time) (StatusChange, error) {
	rule, ok := transitions[action]
	if !ok {
		return StatusChange{}, &InvalidTransitionError{Action: action, From: booking.Status}
	}
	if !statusIn(booking.Status, rule.from) {
		return StatusChange{}, &InvalidTransitionError{Action: action, From: booking.Status}
	}

	change := StatusChange{
		ExpectedFrom: booking.Status,
		To:           rule.to,
		Action:       action,
		ActorID:      actorID,
		Stamp:        rule.stamp,
		At:           now,
	}

	switch action {
	case models.ActionComplete:
		if booking.CustomerSignatureURL == nil || *booking.CustomerSignatureURL == "" {
			return StatusChange{}, ErrMissingSignature
		}
	case models.ActionDecline:
		change.ClearEngineer = true
	case models.ActionReopen:
		// A revisit keeps its engineer and goes straight back to CONFIRMED;
		// cancelled and declined bookings restart unassigned.
		if booking.Status == models.StatusRequiresRevisit && booking.EngineerID != nil {
			change.To = models.StatusConfirmed
		} else {
			change.ClearEngineer = true
		}
	}

	return change, nil
}

func statusIn(status models.BookingStatus, set []models.BookingStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}
