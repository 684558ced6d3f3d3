package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccessRevoked indicates the account exists but has been deactivated.
	ErrAccessRevoked = errors.New("access revoked")
)

// UserSafeMessage maps internal errors to text safe to surface to clients.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "The requested record was not found."
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid credentials."
	case errors.Is(err, ErrAccessRevoked):
		return "Your access has been revoked. Please contact your administrator."
	default:
		return "Something went wrong. Please try again."
	}
}
