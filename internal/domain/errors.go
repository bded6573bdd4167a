package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound                 = errors.New("not found")
	ErrFlightNotFound           = errors.New("flight does not exist")
	ErrCancellationWindowClosed = errors.New("cancellation window closed")
	ErrBookingNotPending        = errors.New("booking is not pending")
	ErrBookingTerminal          = errors.New("booking can no longer change status")
	ErrSeatTaken                = errors.New("seat is already booked on this flight")
	ErrStatusChanged            = errors.New("booking status changed concurrently")
	ErrFlightHasActiveBookings  = errors.New("flight has active bookings")
)

// ValidationError is a client-fixable input problem.
type ValidationError struct {
	Message string
	Fields  map[string]string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "validation failed"
}

func (e *ValidationError) Unwrap() error { return e.Err }

func NewValidationError(err error) *ValidationError {
	return &ValidationError{Message: err.Error(), Err: err}
}

// StorageError is a persistence failure. It is reported to the client but
// never retried automatically.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("database storage failed: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// StateConflictError is an attempted transition the state machine forbids.
type StateConflictError struct {
	From BookingStatus
	To   BookingStatus
	Err  error
}

func (e *StateConflictError) Error() string {
	if e.From != "" && e.To != "" {
		return fmt.Sprintf("%v (%s -> %s)", e.Err, e.From, e.To)
	}
	return e.Err.Error()
}

func (e *StateConflictError) Unwrap() error { return e.Err }

func NewStateConflict(from, to BookingStatus, err error) *StateConflictError {
	return &StateConflictError{From: from, To: to, Err: err}
}

// NotificationError is always handled internally: logged and dropped.
type NotificationError struct {
	Stage string
	Err   error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification %s: %v", e.Stage, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }
