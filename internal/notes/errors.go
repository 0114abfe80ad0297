package notes

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that the note does not exist.
	ErrNotFound = errors.New("notes: note not found")
	// ErrForbidden indicates that the note belongs to another user.
	ErrForbidden = errors.New("notes: note belongs to another user")
	// ErrNothingToUpdate indicates an update without any fields.
	ErrNothingToUpdate = errors.New("notes: no fields to update")
	// ErrInvalidTitle indicates a blank title in an update.
	ErrInvalidTitle = errors.New("notes: title must not be blank")
)

// ServiceError carries a dotted operation.reason code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the operation.reason code.
func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}
