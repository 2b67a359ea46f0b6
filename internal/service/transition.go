package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Thomasfairey/compliance-connect-sub003/internal/models"
)

// TransitionStore applies a validated status change. The write is
// conditioned on the booking still holding change.ExpectedFrom and returns
// ErrStatusConflict when a concurrent actor got there first.
type TransitionStore interface {
	GetBooking(ctx context.Context, id string) (models.Booking, error)
	ApplyStatusChange(ctx context.Context, bookingID string, change StatusChange) error
}

type Transitioner struct {
	Store  TransitionStore
	Logger zerolog.Logger
	Now    func() time.Time
}

// ApplyTransition validates the action against the current booking state
// and applies it. On conflict or disallowed action nothing is mutated.
func (t *Transitioner) ApplyTransition(ctx context.Context, bookingID string, action models.BookingAction, actorID string) (StatusChange, error) {
	booking, err := t.Store.GetBooking(ctx, bookingID)
	if err != nil {
		return StatusChange{}, err
	}

	now := time.Now().UTC()
	if t.Now != nil {
		now = t.Now()
	}

	change, err := PlanTransition(booking, action, actorID, now)
	if err != nil {
		return StatusChange{}, err
	}

	if err := t.Store.ApplyStatusChange(ctx, bookingID, change); err != nil {
		return StatusChange{}, err
	}

	t.Logger.Info().
		Str("booking_id", bookingID).
		Str("action", string(action)).
		Str("from", string(change.ExpectedFrom)).
		Str("to", string(change.To)).
		Str("actor_id", actorID).
		Msg("booking transitioned")
	return change, nil
}
