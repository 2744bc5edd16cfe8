package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrValidation          = errors.New("validation failed")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrLedgerConflict      = errors.New("ledger conflict")
	ErrProviderFailure     = errors.New("provider failure")
)
