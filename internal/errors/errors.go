package errors

import (
	"errors"
	"fmt"
)

// Common error types for the grant and token lifecycle engine.
//
// Protocol errors map onto OAuth2/OIDC error codes and are always returned as
// typed results to callers. A client presenting a grant it does not own gets
// the same ErrInvalidGrant as an unknown handle, so responses never leak
// whether a handle exists.
var (
	// Grant errors
	ErrInvalidGrant  = errors.New("invalid grant")
	ErrExpiredGrant  = errors.New("expired grant")
	ErrConsumedGrant = errors.New("grant already consumed")

	// Device flow errors
	ErrAuthorizationPending = errors.New("authorization pending")
	ErrSlowDown             = errors.New("slow down")
	ErrAccessDenied         = errors.New("access denied")
	ErrExpiredToken         = errors.New("expired token")

	// Client errors
	ErrInvalidClient = errors.New("invalid client")
	ErrInvalidScope  = errors.New("invalid scope")

	// Consent errors
	ErrConsentRequired = errors.New("consent required")

	// General errors
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotFound       = errors.New("not found")
	ErrInternal       = errors.New("internal error")
	ErrUnsupported    = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
