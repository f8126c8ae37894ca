package domain

import "errors"

var ErrNotAuthenticated = errors.New("not authenticated")
var ErrSessionInvalid = errors.New("session invalid")
var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrInsufficientCredits = errors.New("insufficient credits")
var ErrInvalidBalance = errors.New("credit balance must not be negative")
var ErrNoSession = errors.New("no stored session")
var ErrBackendTimeout = errors.New("backend request timed out")
var ErrBackendUnavailable = errors.New("backend unavailable")
var ErrNotConfigured = errors.New("endpoint not configured")

// RejectedError carries a message supplied by an external endpoint on a
// non-OK response. The message is surfaced to the user verbatim.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string { return e.Message }
