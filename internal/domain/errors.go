package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrAlreadyResolved   = errors.New("market already resolved")
	ErrMarketNotOpen     = errors.New("market not open")
	ErrInvalidOutcome    = errors.New("outcome does not belong to market")
	ErrInvalidEvidence   = errors.New("invalid resolution evidence")
	ErrInsufficientChips = errors.New("insufficient chips")
	ErrRateLimited       = errors.New("rate limited")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrLockHeld          = errors.New("lock already held")
)
