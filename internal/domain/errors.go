package domain

import "errors"

var (
	// ErrNoHost is returned when no host name is configured and none can be detected.
	ErrNoHost = errors.New("host name is not configured")
	// ErrInvalidUnit indicates a non-positive rate or duration unit.
	ErrInvalidUnit = errors.New("invalid time unit")
	// ErrRejected marks a batch or discovery payload the collector refused.
	ErrRejected = errors.New("collector rejected request")
	// ErrBadResponse indicates a malformed acknowledgement from the collector.
	ErrBadResponse = errors.New("malformed collector response")
)
