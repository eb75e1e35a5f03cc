package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidGradeValue        = errors.New("invalid grade value")
	ErrInvalidAttendanceStatus  = errors.New("invalid attendance status")
	ErrLoadInProgress           = errors.New("journal load already in progress")
	ErrCellBusy                 = errors.New("cell is being saved")
	ErrNotEditing               = errors.New("cell is not being edited")
	ErrUnknownCell              = errors.New("student or lesson is not part of the loaded journal")
	ErrUnknownPeriod            = errors.New("grading period not found")
	ErrNoSelection              = errors.New("no class and subject selected")
	ErrSessionNotFound          = errors.New("journal session not found")
	ErrRemoteStore              = errors.New("remote store error")
	ErrAuthenticationFailed     = errors.New("authentication failed")
	ErrInvalidFileFormat        = errors.New("invalid file format")
	ErrSchemaValidation         = errors.New("schema validation failed")
	ErrStorageNotConfigured     = errors.New("object storage is not configured")
	ErrObjectNotFound           = errors.New("object not found")
	ErrUnsupportedStoreDriver   = errors.New("unsupported store driver")
	ErrInvalidIdentifier        = errors.New("invalid table or column name")
	ErrUnsupportedFilterOperand = errors.New("unsupported filter operand")
)

type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s' with value '%v': %s",
		e.Field, e.Value, e.Message)
}

type RetryableError struct {
	Err     error
	Message string
}

func (e RetryableError) Error() string {
	return fmt.Sprintf("retryable error: %s - %s", e.Message, e.Err.Error())
}

func (e RetryableError) Unwrap() error {
	return e.Err
}

func NewRetryableError(err error, message string) error {
	return RetryableError{
		Err:     err,
		Message: message,
	}
}

// IsRetryable reports whether err, or anything it wraps, is a RetryableError.
func IsRetryable(err error) bool {
	var re RetryableError
	return errors.As(err, &re)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// Is and As re-export the standard helpers so callers importing this
// package under the name "errors" keep access to them.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }

func New(text string) error { return errors.New(text) }
