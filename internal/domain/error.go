package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Request guards
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInsufficientCredits  = errors.New("insufficient credits")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrRateLimited          = errors.New("rate limit exceeded")

	// Collaborator failures
	ErrUpstreamFailure    = errors.New("upstream failure")
	ErrSignatureInvalid   = errors.New("invalid webhook signature")
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrClientGone         = errors.New("client disconnected")
)
