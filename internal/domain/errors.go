package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidPrice  = errors.New("invalid price")
	ErrInvalidSide   = errors.New("invalid side")
	ErrUnknownPair   = errors.New("unknown pair")
	ErrPairMismatch  = errors.New("pair is not the active pair")
	ErrNoPair        = errors.New("no pair selected")
	ErrRateLimited   = errors.New("rate limited")
	ErrSessionLimit  = errors.New("session limit reached")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLockHeld      = errors.New("lock held")
	ErrUnavailable   = errors.New("backend not configured")
	ErrOutOfRange    = errors.New("decimal out of range")
)
