package booking

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the booking service.
var (
	ErrRequestNotFound        = errors.New("request not found")
	ErrQuoteNotFound          = errors.New("quote not found")
	ErrReservationNotFound    = errors.New("reservation not found")
	ErrProfileNotFound        = errors.New("provider profile not found")
	ErrRequestClosed          = errors.New("request closed")
	ErrQuoteExists            = errors.New("provider already quoted this request")
	ErrQuoteNotAcceptable     = errors.New("quote cannot be accepted")
	ErrQuoteNotRefusable      = errors.New("quote cannot be refused")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrStatusConflict         = errors.New("status changed concurrently")
	ErrReviewExists           = errors.New("reservation already reviewed")
	ErrReviewNotAllowed       = errors.New("reservation cannot be reviewed")
	ErrForbidden              = errors.New("actor is not allowed to perform this operation")
	ErrPaymentAmountMismatch  = errors.New("payment amount mismatch")
	ErrPaymentSessionNotFound = errors.New("payment session not found")
	ErrPaymentUnavailable     = errors.New("payment lookup unavailable")
	ErrInvalidUserID          = errors.New("invalid user id")
	ErrInvalidRequestID       = errors.New("invalid request id")
	ErrInvalidQuoteID         = errors.New("invalid quote id")
	ErrInvalidReservationID   = errors.New("invalid reservation id")
	ErrInvalidAmountCents     = errors.New("invalid amount cents")
	ErrInvalidSchedule        = errors.New("invalid schedule")
	ErrInvalidCategory        = errors.New("invalid category")
	ErrInvalidBudget          = errors.New("invalid budget")
	ErrInvalidRating          = errors.New("invalid rating")
	ErrInvalidStatus          = errors.New("invalid status")
	ErrInvalidServiceConfig   = errors.New("invalid service config")
)

// StoreError records which persisted entity and which storage action failed.
// Callers match the cause with errors.Is and the action with errors.As.
type StoreError struct {
	Entity string
	Action string
	Err    error
}

func (storeError *StoreError) Error() string {
	return fmt.Sprintf("store: %s %s: %v", storeError.Action, storeError.Entity, storeError.Err)
}

func (storeError *StoreError) Unwrap() error {
	return storeError.Err
}

// NewStoreError returns nil when err is nil so storage code can wrap results
// unconditionally.
func NewStoreError(entity string, action string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Entity: entity, Action: action, Err: err}
}
