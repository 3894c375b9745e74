package payment

import (
	"fmt"

	"github.com/Sam231221/AuraSwift-sub012/internal/modules/errlog"
)

// Kind discriminates the error taxonomy. Every error leaving this package is
// one of these kinds; raw transport errors never reach the caller.
type Kind string

const (
	KindNetwork       Kind = "network"
	KindTerminal      Kind = "terminal"
	KindTransaction   Kind = "transaction"
	KindConfiguration Kind = "configuration"
	KindUnknown       Kind = "unknown"
)

// Severity drives the log level and operator attention ordering.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Stable error codes. Codes are part of the caller contract and never change
// meaning between releases.
const (
	CodeConnectionRefused = "connection_refused"
	CodeNetworkTimeout    = "network_timeout"
	CodeHostUnreachable   = "host_unreachable"
	CodeDNSFailure        = "dns_failure"

	CodeTerminalOffline  = "terminal_offline"
	CodeTerminalBusy     = "terminal_busy"
	CodeAuthFailed       = "auth_failed"
	CodeTerminalNotFound = "terminal_not_found"
	CodeCircuitOpen      = "circuit_open"

	CodeDeclined          = "payment_declined"
	CodeInsufficientFunds = "insufficient_funds"
	CodeExpiredCard       = "expired_card"
	CodeTxTimeout         = "transaction_timeout"
	CodeTxCancelled       = "transaction_cancelled"
	CodeTxNotFound        = "transaction_not_found"

	CodeInvalidAddress    = "invalid_address"
	CodeInvalidPort       = "invalid_port"
	CodeMissingCredential = "missing_credential"
	CodeInvalidScanRange  = "invalid_scan_range"
	CodeInvalidRequest    = "invalid_request"
	CodeUnverifiedSession = "unverified_session"

	CodeUnknown = "unknown_error"
)

// Error is the single tagged-union error type of the engine. The Kind field is
// the discriminator; handlers switch on Kind or Code, never on dynamic types.
type Error struct {
	Kind          Kind     `json:"kind"`
	Code          string   `json:"code"`
	Message       string   `json:"message"`
	Severity      Severity `json:"severity"`
	Retryable     bool     `json:"retryable"`
	TerminalID    string   `json:"terminal_id,omitempty"`
	TransactionID string   `json:"transaction_id,omitempty"`

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Code, e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Code, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// WithTerminal attaches the terminal correlation id.
func (e *Error) WithTerminal(id string) *Error {
	e.TerminalID = id
	return e
}

// WithTransaction attaches the transaction correlation id.
func (e *Error) WithTransaction(id string) *Error {
	e.TransactionID = id
	return e
}

// Entry converts the error to the errlog record shape.
func (e *Error) Entry() errlog.Entry {
	return errlog.Entry{
		Code:          e.Code,
		Kind:          string(e.Kind),
		Message:       e.Message,
		Severity:      string(e.Severity),
		Retryable:     e.Retryable,
		TerminalID:    e.TerminalID,
		TransactionID: e.TransactionID,
	}
}

// codeProfile fixes kind, severity and retryability per code so every
// construction site agrees on the taxonomy contract.
type codeProfile struct {
	kind      Kind
	severity  Severity
	retryable bool
}

var codeProfiles = map[string]codeProfile{
	CodeConnectionRefused: {KindNetwork, SeverityMedium, true},
	CodeNetworkTimeout:    {KindNetwork, SeverityMedium, true},
	CodeHostUnreachable:   {KindNetwork, SeverityHigh, true},
	CodeDNSFailure:        {KindNetwork, SeverityHigh, true},

	CodeTerminalOffline:  {KindTerminal, SeverityHigh, true},
	CodeTerminalBusy:     {KindTerminal, SeverityMedium, true},
	CodeAuthFailed:       {KindTerminal, SeverityHigh, false},
	CodeTerminalNotFound: {KindTerminal, SeverityHigh, false},
	CodeCircuitOpen:      {KindTerminal, SeverityHigh, false},

	CodeDeclined:          {KindTransaction, SeverityLow, false},
	CodeInsufficientFunds: {KindTransaction, SeverityLow, false},
	CodeExpiredCard:       {KindTransaction, SeverityLow, false},
	CodeTxTimeout:         {KindTransaction, SeverityMedium, true},
	CodeTxCancelled:       {KindTransaction, SeverityLow, false},
	CodeTxNotFound:        {KindTransaction, SeverityMedium, false},

	CodeInvalidAddress:    {KindConfiguration, SeverityHigh, false},
	CodeInvalidPort:       {KindConfiguration, SeverityHigh, false},
	CodeMissingCredential: {KindConfiguration, SeverityHigh, false},
	CodeInvalidScanRange:  {KindConfiguration, SeverityHigh, false},
	CodeInvalidRequest:    {KindConfiguration, SeverityMedium, false},
	CodeUnverifiedSession: {KindConfiguration, SeverityMedium, false},

	CodeUnknown: {KindUnknown, SeverityHigh, false},
}

// newError builds a taxonomy error from its registered code.
func newError(code, message string, cause error) *Error {
	profile, ok := codeProfiles[code]
	if !ok {
		profile = codeProfiles[CodeUnknown]
		code = CodeUnknown
	}
	return &Error{
		Kind:      profile.kind,
		Code:      code,
		Message:   message,
		Severity:  profile.severity,
		Retryable: profile.retryable,
		cause:     cause,
	}
}
