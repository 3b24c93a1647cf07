package auth

import "errors"

var (
	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: conflict")
	ErrInvalidInput = errors.New("auth: invalid input")
	ErrUnauthorized = errors.New("auth: unauthorized")
	ErrForbidden    = errors.New("auth: forbidden")

	// ErrInvalidToken indicates a credential failed validation. Deliberately
	// carries no detail about which check failed.
	ErrInvalidToken = errors.New("invalid token")
)
