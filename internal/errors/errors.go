package errors

import (
	"context"
	"errors"
)

// UnauthenticatedError represents when a caller has no verified identity
type UnauthenticatedError struct {
	Message string
}

func (e *UnauthenticatedError) Error() string {
	return e.Message
}

func NewUnauthenticatedError(message string) *UnauthenticatedError {
	return &UnauthenticatedError{
		Message: message,
	}
}

// MarshalingError represents when marshaling or unmarshaling operations fail
type MarshalingError struct {
	Message string
}

func (e *MarshalingError) Error() string {
	return e.Message
}

func NewMarshalingError(message string) *MarshalingError {
	return &MarshalingError{
		Message: message,
	}
}

// TransientError wraps a store or network failure that is expected to clear
// on retry (timeouts, unavailability). Anything not transient is treated as
// permanent by the deletion worker.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return "transient failure during " + e.Op + ": " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func NewTransientError(op string, err error) *TransientError {
	return &TransientError{
		Op:  op,
		Err: err,
	}
}

func IsTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
