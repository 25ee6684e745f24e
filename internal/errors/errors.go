package errors

import (
	"errors"
)

// Kind classifies a failure for logging and user-facing replies
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthorizationDenied
	KindValidationFailed
	KindNotFound
	KindTransientDelivery
	KindHandlerFault
	KindPersistenceFault
)

func (k Kind) String() string {
	switch k {
	case KindAuthorizationDenied:
		return "authorization_denied"
	case KindValidationFailed:
		return "validation_failed"
	case KindNotFound:
		return "not_found"
	case KindTransientDelivery:
		return "transient_delivery"
	case KindHandlerFault:
		return "handler_fault"
	case KindPersistenceFault:
		return "persistence_fault"
	default:
		return "unknown"
	}
}

// UserError represents an error with both technical and user-friendly messages
type UserError struct {
	Err       error
	Kind      Kind
	UserMsg   string
	Retryable bool
}

func (e *UserError) Error() string {
	return e.Err.Error()
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// Predefined errors
var (
	ErrNoPermission = &UserError{
		Err:     errors.New("no permission"),
		Kind:    KindAuthorizationDenied,
		UserMsg: "❌ You do not have permission to use this command!",
	}

	ErrCommandFailed = &UserError{
		Err:     errors.New("command handler failed"),
		Kind:    KindHandlerFault,
		UserMsg: "❌ An error occurred while running the command!",
	}

	ErrDeliveryFailed = &UserError{
		Err:       errors.New("message delivery failed"),
		Kind:      KindTransientDelivery,
		UserMsg:   "",
		Retryable: true,
	}
)

// Wrap wraps a technical error with a user message
func Wrap(err error, kind Kind, userMsg string, retryable bool) *UserError {
	return &UserError{
		Err:       err,
		Kind:      kind,
		UserMsg:   userMsg,
		Retryable: retryable,
	}
}

// GetUserMessage extracts user-friendly message from error
func GetUserMessage(err error) string {
	var userErr *UserError
	if errors.As(err, &userErr) && userErr.UserMsg != "" {
		return userErr.UserMsg
	}
	// Default message for unexpected errors
	return ErrCommandFailed.UserMsg
}

// KindOf reports the Kind carried by err, or KindUnknown
func KindOf(err error) Kind {
	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.Kind
	}
	return KindUnknown
}

// IsRetryable checks if an error can be retried
func IsRetryable(err error) bool {
	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.Retryable
	}
	return false
}
