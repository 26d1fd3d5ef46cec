package errors

import (
	"errors"
	"fmt"
)

var (
	// Raised by the API client and the route guards
	ErrExpiredCredential      = errors.New("access token expired")
	ErrAuthorizationDenied    = errors.New("authorization denied")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrRefreshFailed          = errors.New("token refresh failed")
	ErrNoSession              = errors.New("no session")
	ErrSessionReplaced        = errors.New("session replaced during refresh")

	// Raised by broadcast channels
	ErrChannelClosed = errors.New("broadcast channel closed")

	// Raised by the reference API
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrInvalidUser         = errors.New("invalid user")
	ErrConflict            = errors.New("conflict")

	ErrNotFound = errors.New("not found")
)

// Wrapf prefixes err with a formatted message and keeps it matchable with Is.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As returns the first error in err's chain of type T.
func As[T error](err error) (T, bool) {
	var target T
	ok := errors.As(err, &target)
	return target, ok
}

func Join(errs ...error) error {
	return errors.Join(errs...)
}
