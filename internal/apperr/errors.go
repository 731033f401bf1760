package apperr

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrNotReady   = errors.New("library not ready")
	ErrConflict   = errors.New("conflict")
	ErrInvalidKey = errors.New("invalid cache key")
)
