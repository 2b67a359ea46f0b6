package service

import (
	"errors"
	"testing"
	"time"

	"github.com/Thomasfairey/compliance-connect-sub003/internal/models"
)

var allStatuses = []models.BookingStatus{
	models.StatusPending, models.StatusConfirmed, models.StatusEnRoute,
	models.StatusOnSite, models.StatusInProgress, models.StatusCompleted,
	models.StatusDeclined, models.StatusCancelled, models.StatusRequiresRevisit,
}

var allActions = []models.BookingAction{
	models.ActionAccept, models.ActionStartTravel, models.ActionArrive,
	models.ActionStartWork, models.ActionComplete, models.ActionDecline,
	models.ActionCancel, models.ActionRevisit, models.ActionReopen,
}

func signedBooking(status models.BookingStatus) models.Booking {
	sig := "https://cdn.example.com/sig.png"
	eng := "e1"
	return models.Booking{
		ID:                   "b1",
		Status:               status,
		EngineerID:           &eng,
		CustomerSignatureURL: &sig,
	}
}

// Sweep every (action, status) pair: either the table allows it and the
// planned change matches, or PlanTransition rejects with InvalidTransition.
func TestPlanTransitionFullTable(t *testing.T) {
	allowed := map[models.BookingAction]map[models.BookingStatus]models.BookingStatus{
		models.ActionAccept:      {models.StatusPending: models.StatusConfirmed},
		models.ActionStartTravel: {models.StatusConfirmed: models.StatusEnRoute},
		models.ActionArrive:      {models.StatusEnRoute: models.StatusOnSite},
		models.ActionStartWork:   {models.StatusOnSite: models.StatusInProgress},
		models.ActionComplete:    {models.StatusInProgress: models.StatusCompleted},
		models.ActionDecline:     {models.StatusConfirmed: models.StatusDeclined},
		models.ActionCancel: {
			models.StatusPending:    models.StatusCancelled,
			models.StatusConfirmed:  models.StatusCancelled,
			models.StatusInProgress: models.StatusCancelled,
		},
		models.ActionRevisit: {models.StatusInProgress: models.StatusRequiresRevisit},
		models.ActionReopen: {
			models.StatusCancelled:       models.StatusPending,
			models.StatusDeclined:        models.StatusPending,
			models.StatusRequiresRevisit: models.StatusConfirmed,
		},
	}

	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	for _, action := range allActions {
		for _, status := range allStatuses {
			booking := signedBooking(status)
			change, err := PlanTransition(booking, action, "actor-1", now)

			wantTo, ok := allowed[action][status]
			if !ok {
				var invalid *InvalidTransitionError
				if !errors.As(err, &invalid) {
					t.Fatalf("(%s, %s): expected InvalidTransitionError, got %v", action, status, err)
				}
				if invalid.Action != action || invalid.From != status {
					t.Fatalf("(%s, %s): error carries wrong pair: %+v", action, status, invalid)
				}
				continue
			}

			if err != nil {
				t.Fatalf("(%s, %s): unexpected error %v", action, status, err)
			}
			if change.To != wantTo {
				t.Fatalf("(%s, %s): to = %s, want %s", action, status, change.To, wantTo)
			}
			if change.ExpectedFrom != status {
				t.Fatalf("(%s, %s): expected-from = %s", action, status, change.ExpectedFrom)
			}
		}
	}
}

func TestPlanTransitionCompletedIsTerminal(t *testing.T) {
	for _, action := range allActions {
		if _, err := PlanTransition(signedBooking(models.StatusCompleted), action, "a", time.Now()); err == nil {
			t.Fatalf("expected COMPLETED to reject action %s", action)
		}
	}
}

func TestPlanTransitionCompleteRequiresSignature(t *testing.T) {
	booking := signedBooking(models.StatusInProgress)
	booking.CustomerSignatureURL = nil

	_, err := PlanTransition(booking, models.ActionComplete, "eng-1", time.Now())
	if !errors.Is(err, ErrMissingSignature) {
		t.Fatalf("expected ErrMissingSignature, got %v", err)
	}

	empty := ""
	booking.CustomerSignatureURL = &empty
	_, err = PlanTransition(booking, models.ActionComplete, "eng-1", time.Now())
	if !errors.Is(err, ErrMissingSignature) {
		t.Fatalf("expected ErrMissingSignature for empty url, got %v", err)
	}
}

func TestPlanTransitionDeclineClearsEngineer(t *testing.T) {
	change, err := PlanTransition(signedBooking(models.StatusConfirmed), models.ActionDecline, "eng-1", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !change.ClearEngineer {
		t.Fatalf("expected DECLINE to clear the engineer")
	}
}

func TestPlanTransitionReopenTargets(t *testing.T) {
	// Revisit keeps the engineer and returns to CONFIRMED.
	change, err := PlanTransition(signedBooking(models.StatusRequiresRevisit), models.ActionReopen, "admin", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if change.To != models.StatusConfirmed || change.ClearEngineer {
		t.Fatalf("expected CONFIRMED with engineer kept, got %+v", change)
	}

	// Cancelled restarts unassigned.
	change, err = PlanTransition(signedBooking(models.StatusCancelled), models.ActionReopen, "admin", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if change.To != models.StatusPending || !change.ClearEngineer {
		t.Fatalf("expected PENDING with engineer cleared, got %+v", change)
	}

	// A revisit that somehow lost its engineer also restarts unassigned.
	booking := signedBooking(models.StatusRequiresRevisit)
	booking.EngineerID = nil
	change, err = PlanTransition(booking, models.ActionReopen, "admin", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if change.To != models.StatusPending {
		t.Fatalf("expected PENDING when no engineer to restore, got %s", change.To)
	}
}

func TestPlanTransitionStampsLifecycleField(t *testing.T) {
	cases := map[models.BookingAction]TimestampField{
		models.ActionAccept:      StampAccepted,
		models.ActionStartTravel: StampEnRoute,
		models.ActionArrive:      StampArrived,
		models.ActionStartWork:   StampStarted,
		models.ActionComplete:    StampCompleted,
	}
	from := map[models.BookingAction]models.BookingStatus{
		models.ActionAccept:      models.StatusPending,
		models.ActionStartTravel: models.StatusConfirmed,
		models.ActionArrive:      models.StatusEnRoute,
		models.ActionStartWork:   models.StatusOnSite,
		models.ActionComplete:    models.StatusInProgress,
	}
	for action, stamp := range cases {
		change, err := PlanTransition(signedBooking(from[action]), action, "eng-1", time.Now())
		if err != nil {
			t.Fatalf("%s: unexpected error %v", action, err)
		}
		if change.Stamp != stamp {
			t.Fatalf("%s: stamp = %s, want %s", action, change.Stamp, stamp)
		}
	}
}
