package core

import (
	"errors"
	"fmt"

	"piecework.app/piecework/timesheet/model"
	"piecework.app/piecework/timesheet/repository"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrForbidden          = errors.New("you do not have permission to perform this action")
	ErrNotFound           = repository.ErrNotFound
	ErrInvalidTransition  = model.ErrInvalidTransition
	ErrInvalidQuantity    = fmt.Errorf("%w: invalid quantity", ErrValidation)
	ErrDuplicateProcess   = fmt.Errorf("%w: duplicate process", ErrValidation)
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrSessionExpired     = errors.New("session expired, please sign in again")
	ErrAccountDisabled    = errors.New("this account has been disabled")
	ErrNoDraft            = errors.New("no edit in progress")
	ErrNoPendingConflict  = errors.New("no pending action to resolve")
	ErrEntryUnavailable   = errors.New("recycle bin entry is no longer available")
)

// FieldError is a validation failure tied to one input field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *FieldError) Unwrap() error {
	return ErrValidation
}

func fieldError(field, format string, args ...interface{}) error {
	return &FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}
