package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the identity lacks the required capability or scope.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation indicates a malformed request.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a state or uniqueness conflict.
	ErrConflict = errors.New("conflict")
	// ErrUnauthenticated indicates no identity was presented.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidCredentials indicates a rejected API token.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRateLimited indicates the caller exhausted its request budget.
	ErrRateLimited = errors.New("rate limited")
)

// UserSafeMessage returns a message that can be shown to API clients without
// leaking storage details.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrRateLimited):
		return err.Error()
	default:
		return "internal error"
	}
}
