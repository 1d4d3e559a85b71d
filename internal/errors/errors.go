package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session gate
var (
	// Token errors
	ErrInvalidToken   = errors.New("invalid token")
	ErrIncompletePair = errors.New("incomplete credential pair")

	// Session errors
	ErrSessionNotFound      = errors.New("session not found")
	ErrNoSession            = errors.New("no session")
	ErrMissingRefreshToken  = errors.New("missing refresh token")
	ErrRenewalFailed        = errors.New("token renewal failed")
	ErrRenewalRejected      = errors.New("renewal rejected")
	ErrRenewalUnavailable   = errors.New("renewal endpoint unavailable")
	ErrRenewalMissingFields = errors.New("renewal response missing tokens")

	// Identity service errors
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountExists      = errors.New("account already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrIdentityService    = errors.New("identity service error")

	// OAuth sign-in errors
	ErrInvalidState     = errors.New("invalid state")
	ErrOAuthUnavailable = errors.New("oauth sign-in not configured")

	// General errors
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternal       = errors.New("internal error")
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

// Join combines errors, dropping nils
func Join(errs ...error) error {
	return errors.Join(errs...)
}
