package errors

import (
	"errors"
	"fmt"
)

// Common error types for the agency admin client and mock backend
var (
	// Session errors
	ErrNotLoggedIn        = errors.New("not logged in")
	ErrSessionExpired     = errors.New("session expired")
	ErrSessionTerminated  = errors.New("session terminated")
	ErrInactivityTimeout  = errors.New("inactivity timeout")
	ErrLoggedOutElsewhere = errors.New("logged out in another tab")

	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrRefreshFailed      = errors.New("token refresh failed")

	// Token errors
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// Resource errors
	ErrUnknownResource     = errors.New("unknown resource")
	ErrReadOnlyResource    = errors.New("resource is read-only")
	ErrMissingInvalidation = errors.New("mutation has no invalidation rule")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
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

// New returns an error that formats as the given text
func New(text string) error {
	return errors.New(text)
}
