package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidPrompt      = errors.New("invalid prompt")
	ErrPrecondition       = errors.New("precondition failed")
	ErrDuplicateOperation = errors.New("duplicate operation")
	ErrProviderFailure    = errors.New("provider failure")
)
