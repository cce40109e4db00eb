package core

import "errors"

// Error taxonomy shared by every layer. Wrap with %w and test with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation error")
	ErrRateLimited      = errors.New("rate limited")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrComputation      = errors.New("computation error")
)

var (
	ErrEmptyBooth     = errors.New("empty booth")
	ErrEmptyService   = errors.New("empty service")
	ErrUnknownService = errors.New("unknown service")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidRate    = errors.New("invalid rate")
)
