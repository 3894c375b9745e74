package terminal

import (
	"errors"
	"fmt"
)

// Sentinel errors reported by the terminal's local API or by client-side checks.
// The payment module's classifier maps these into its error taxonomy; nothing in
// this package retries or interprets them.
var (
	ErrOffline        = errors.New("terminal offline")
	ErrBusy           = errors.New("terminal busy with another transaction")
	ErrAuthFailed     = errors.New("terminal authentication failed")
	ErrNotFound       = errors.New("terminal not found")
	ErrNoCredential   = errors.New("terminal has no credential configured")
	ErrInvalidAddress = errors.New("invalid terminal address")
	ErrInvalidRange   = errors.New("invalid scan address range")
)

// APIError is a non-2xx response from a terminal endpoint, carrying the
// terminal-reported code verbatim (e.g. "declined", "busy", "expired_card").
type APIError struct {
	HTTPStatus    string
	Code          string
	Message       string
	TransactionID string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("terminal responded %s: %s (%s)", e.HTTPStatus, e.Code, e.Message)
	}
	return fmt.Sprintf("terminal responded %s: %s", e.HTTPStatus, e.Code)
}
