package leads

import "errors"

var (
	// ErrMissingSession is returned when the lead has no session id.
	ErrMissingSession = errors.New("session id is required")

	// ErrInvalidName is returned when the name is invalid.
	ErrInvalidName = errors.New("name is required")

	// ErrMissingContact is returned when the phone is missing.
	ErrMissingContact = errors.New("phone is required")

	// ErrLeadNotFound is returned when a lead is not found.
	ErrLeadNotFound = errors.New("lead not found")
)
