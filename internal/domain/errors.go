package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNonPositiveAmount = errors.New("amount must be positive")
	ErrInvalidAmount     = errors.New("amount is not representable in asset units")
	ErrUnknownPayer      = errors.New("no signing key configured for payer")
	ErrMalformedPrice    = errors.New("malformed oracle price")
)

// ValidationError reports an invalid rule or request field.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// IsValidationError checks if err is, or wraps, a ValidationError.
func IsValidationError(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

// ErrorKind labels a failure for logs and metrics.
type ErrorKind string

const (
	ErrorKindNone          ErrorKind = ""
	ErrorKindTransient     ErrorKind = "transient"
	ErrorKindRevert        ErrorKind = "revert"
	ErrorKindNotFound      ErrorKind = "not_found"
	ErrorKindConfiguration ErrorKind = "configuration"
	ErrorKindValidation    ErrorKind = "validation"
)

// classifiedError lets lower packages attach a kind without domain importing
// them.
type classifiedError interface {
	ErrorKind() ErrorKind
}

// KindError wraps err with an explicit kind.
type KindError struct {
	Kind ErrorKind
	Err  error
}

func (e *KindError) Error() string        { return e.Err.Error() }
func (e *KindError) Unwrap() error        { return e.Err }
func (e *KindError) ErrorKind() ErrorKind { return e.Kind }

// WithKind tags err with kind. A nil err stays nil.
func WithKind(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &KindError{Kind: kind, Err: err}
}

// ClassifyError maps err onto the failure taxonomy. Unknown errors are treated
// as transient and retried on the next interval.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}

	var classified classifiedError
	if errors.As(err, &classified) {
		return classified.ErrorKind()
	}

	switch {
	case IsValidationError(err),
		errors.Is(err, ErrNonPositiveAmount),
		errors.Is(err, ErrInvalidAmount):
		return ErrorKindValidation
	case errors.Is(err, ErrUnknownPayer):
		return ErrorKindConfiguration
	}
	return ErrorKindTransient
}
