package attendance

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed or missing caller input.
	ErrValidation = errors.New("validation error")
	// ErrNotFoundOrForbidden covers a missing session, a foreign owner and an ended session alike.
	ErrNotFoundOrForbidden = errors.New("session not found, not owned, or not active")

	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionNotActive = errors.New("session not active")
	ErrDuplicateRecord  = errors.New("attendance already recorded for student")
	ErrDeviceInUse      = errors.New("device already recorded for another student")

	// ErrTokenMismatch means the session rotated its token before the row was written.
	ErrTokenMismatch = errors.New("session token no longer current")

	// ErrStoreUnavailable wraps timeouts and connection failures. Safe to retry.
	ErrStoreUnavailable = errors.New("attendance store unavailable")
)

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
