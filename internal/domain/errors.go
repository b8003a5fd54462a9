package domain

import "errors"

// Domain errors
var (
	ErrUnauthenticated = errors.New("caller identity required")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrInvalidResult   = errors.New("invalid combat result")
	ErrPlayerNotFound  = errors.New("player not found")
	ErrPlayerExists    = errors.New("player already registered")
	ErrMatchNotFound   = errors.New("match not found")
	ErrNotParticipant  = errors.New("not a participant in this match")
	ErrMatchNotPending = errors.New("match is not pending")
	ErrMatchExpired    = errors.New("match has expired")
	ErrInternalError   = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrPlayerNotFound) || errors.Is(err, ErrMatchNotFound)
}

// IsValidationError checks if an error should surface as a bad request
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) || errors.Is(err, ErrInvalidResult)
}
