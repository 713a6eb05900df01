package history

import "errors"

var (
	// ErrEmptyField indicates a record or query was attempted without a field name.
	ErrEmptyField = errors.New("history: field name is required")

	// ErrInvalidRetention indicates a prune was requested with a non-positive retention.
	ErrInvalidRetention = errors.New("history: retention must be positive")
)
