package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyMessage indicates a message without content.
	ErrEmptyMessage = errors.New("chat: message content is required")
	// ErrMessageNotFound indicates that the message does not exist.
	ErrMessageNotFound = errors.New("chat: message not found")
	// ErrForbidden indicates that the message belongs to another user's chat.
	ErrForbidden = errors.New("chat: message belongs to another user")
	// ErrNothingToUpdate indicates feedback without any flag.
	ErrNothingToUpdate = errors.New("chat: no feedback supplied")
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
