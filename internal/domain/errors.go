package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrJobTerminal         = errors.New("job already terminal")
	ErrEventUnresolved     = errors.New("provider event unresolved")
	ErrVibeInactive        = errors.New("vibe inactive")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrDuplicateOperation  = errors.New("duplicate operation")
	ErrProviderFailure     = errors.New("provider failure")
)
