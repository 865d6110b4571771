package shared

import "errors"

var (
	// ErrValidation indicates malformed input to a local operation.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a unique-constraint violation.
	ErrConflict = errors.New("duplicate entry")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure. The message is
	// deliberately generic so a caller cannot tell whether the username
	// or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrUnavailable indicates a transient failure reaching the record
	// store or the notification channel.
	ErrUnavailable = errors.New("backend unavailable")
)

// UserSafeMessage maps internal errors to a message suitable for
// operator-facing responses.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "The submitted data is invalid."
	case errors.Is(err, ErrConflict):
		return "A record with the same identity already exists."
	case errors.Is(err, ErrNotFound):
		return "The requested record does not exist."
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid username or password."
	case errors.Is(err, ErrUnavailable):
		return "The backend is temporarily unavailable."
	default:
		return "An unexpected error occurred."
	}
}
