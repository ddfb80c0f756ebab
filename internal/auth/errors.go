package auth

import "errors"

var (
	// ErrInvalidCredential covers every authentication miss: unknown user,
	// wrong password, unknown or revoked API key. Deliberately coarse so
	// callers cannot tell which part failed.
	ErrInvalidCredential = errors.New("invalid credentials")

	// ErrForbidden indicates an authenticated caller attempted a privileged
	// operation on a resource it does not own.
	ErrForbidden = errors.New("forbidden")
)
