package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrCapacity           = errors.New("party exceeds cabin capacity")
	ErrStayTooLong        = errors.New("stay exceeds the maximum number of nights")
	ErrTooFarAhead        = errors.New("stay starts too far in the future")
	ErrPastDate           = errors.New("stay cannot start in the past")
	ErrIllegalTransition  = errors.New("illegal status transition")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrTooManyAttempts    = errors.New("too many login attempts")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrSelfDelete         = errors.New("users cannot delete themselves")
)

// ValidationError reports a malformed input field. It matches ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
