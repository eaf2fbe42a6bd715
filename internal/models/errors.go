package models

import "errors"

// Validation errors shared by model types.
var (
	ErrMissingEventType = errors.New("event type is required")
)
