package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrAlreadyClaimed      = errors.New("daily credits already claimed")
	ErrUnsupportedJobType  = errors.New("unsupported job type")
	ErrInvalidPayload      = errors.New("invalid payload")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrUnknownPackage      = errors.New("unknown credit package")
)
