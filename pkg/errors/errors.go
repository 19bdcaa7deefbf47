package relay_errors

import "errors"

// Ingestion outcomes
var (
	ErrAuthentication  = errors.New("authentication failed")
	ErrSchema          = errors.New("schema violation")
	ErrStoreFailure    = errors.New("store failure")
	ErrDeliveryFailure = errors.New("delivery failure")
)

// Common errors
var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidInput       = errors.New("invalid input")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrConnectionClosed   = errors.New("connection closed")
)
