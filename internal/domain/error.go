package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")

	// Conversation errors
	ErrValidation      = errors.New("validation failed")
	ErrBackend         = errors.New("ticket backend unavailable")
	ErrUnauthenticated = errors.New("user is not authenticated")
	ErrSessionClosed   = errors.New("session has been replaced")
	ErrDuplicate       = errors.New("entity already exists")
)
