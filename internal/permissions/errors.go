package permissions

import (
	"errors"

	apperrors "convox-bot/internal/errors"
)

// Mutations return nil on success. ErrDenied, ErrInvalid and ErrNotFound
// mean nothing changed. ErrPersist means the change is live in memory but
// the backing store could not be written.
var (
	ErrDenied = &apperrors.UserError{
		Err:     errors.New("permissions: actor lacks required role"),
		Kind:    apperrors.KindAuthorizationDenied,
		UserMsg: "❌ You do not have permission to do that!",
	}

	ErrInvalid = &apperrors.UserError{
		Err:     errors.New("permissions: invalid argument"),
		Kind:    apperrors.KindValidationFailed,
		UserMsg: "❌ Invalid request!",
	}

	ErrNotFound = &apperrors.UserError{
		Err:     errors.New("permissions: entry not found"),
		Kind:    apperrors.KindNotFound,
		UserMsg: "❌ Nothing to remove.",
	}

	ErrPersist = &apperrors.UserError{
		Err:       errors.New("permissions: persist failed"),
		Kind:      apperrors.KindPersistenceFault,
		UserMsg:   "⚠️ Change applied but could not be saved; it will be lost on restart.",
		Retryable: true,
	}
)

// Applied reports whether a mutation took effect in memory
func Applied(err error) bool {
	return err == nil || errors.Is(err, ErrPersist)
}
