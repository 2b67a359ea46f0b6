package service

import (
	"errors"
	"fmt"

	"github.com/Thomasfairey/compliance-connect-sub003/internal/models"
)

var (
	ErrBookingNotFound    = errors.New("booking not found")
	ErrNoEligibleEngineer = errors.New("no eligible engineer")
	ErrAlreadyAllocated   = errors.New("booking already allocated")
	ErrMissingSignature   = errors.New("customer signature required to complete")
	ErrStatusConflict     = errors.New("booking status changed concurrently")
)

// InvalidTransitionError reports a lifecycle action attempted from a state
// the transition table does not allow.
type InvalidTransitionError struct {
	Action models.BookingAction
	From   models.BookingStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: action %s not allowed from status %s", e.Action, e.From)
}

// RuleConfigError marks a pricing rule whose payload could not be decoded.
// The quote pipeline skips the rule; it never fails the quote.
type RuleConfigError struct {
	RuleID string
	Type   models.RuleType
	Err    error
}

func (e *RuleConfigError) Error() string {
	return fmt.Sprintf("pricing rule %s (%s): invalid config: %v", e.RuleID, e.Type, e.Err)
}

func (e *RuleConfigError) Unwrap() error { return e.Err }
