package core

import "errors"

// Error codes for protocol errors.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeInvalidMessage = "invalid_message"
	ErrCodeRateLimited    = "rate_limited"
)

var (
	// ErrHubStopped is returned when a command is sent after the hub stopped.
	ErrHubStopped = errors.New("hub stopped")
	// ErrUnknownClient is returned for room commands about an unregistered client.
	ErrUnknownClient = errors.New("unknown client")
)
