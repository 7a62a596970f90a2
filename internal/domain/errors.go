package domain

import "errors"

// Domain errors
var (
	ErrPlayerNotFound       = errors.New("player statistics not found")
	ErrEventNotFound        = errors.New("scheduled event not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidEvent         = errors.New("invalid domain event")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrInternalError        = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrPlayerNotFound) ||
		errors.Is(err, ErrEventNotFound) ||
		errors.Is(err, ErrNotificationNotFound)
}
