package models

import (
	"errors"

	"gorm.io/gorm"
)

// Sentinel errors shared across the engine. Callers classify failures with
// errors.Is; the HTTP layer maps them onto status codes.
var (
	ErrValidation       = errors.New("validation failed")
	ErrUnauthorized     = errors.New("caller identity missing or invalid")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("concurrent modification")
	ErrStoreUnavailable = errors.New("store unavailable")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}
