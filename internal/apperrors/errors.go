// Package apperrors holds the sentinel errors shared across packages.
// Callers wrap them with fmt.Errorf("...: %w") and test with errors.Is.
package apperrors

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrConfiguration      = errors.New("configuration error")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrIngestionFailed    = errors.New("ingestion failed")
)
