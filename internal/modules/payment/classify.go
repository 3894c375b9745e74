package payment

import (
	"context"
	"errors"
	"net"
	"syscall"

	"github.com/Sam231221/AuraSwift-sub012/internal/modules/terminal"
)

// Classify maps a raw error onto the taxonomy. It is total: every input yields
// exactly one taxonomy member, and anything unrecognized becomes a
// non-retryable unknown error.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	// Already classified errors pass through untouched so correlation ids and
	// breaker wait-time messages survive re-classification at package borders.
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	// Terminal-reported sentinels.
	switch {
	case errors.Is(err, terminal.ErrOffline):
		return newError(CodeTerminalOffline, "terminal reported offline", err)
	case errors.Is(err, terminal.ErrBusy):
		return newError(CodeTerminalBusy, "terminal is busy", err)
	case errors.Is(err, terminal.ErrAuthFailed):
		return newError(CodeAuthFailed, "terminal rejected credentials", err)
	case errors.Is(err, terminal.ErrNotFound):
		return newError(CodeTerminalNotFound, "terminal not found", err)
	case errors.Is(err, terminal.ErrNoCredential):
		return newError(CodeMissingCredential, "terminal has no credential configured", err)
	case errors.Is(err, terminal.ErrInvalidAddress):
		return newError(CodeInvalidAddress, "invalid terminal address", err)
	case errors.Is(err, terminal.ErrInvalidRange):
		return newError(CodeInvalidScanRange, "invalid scan address range", err)
	}

	// Terminal API error envelopes carry the device-reported code verbatim.
	var apiErr *terminal.APIError
	if errors.As(err, &apiErr) {
		return classifyAPIError(apiErr)
	}

	// Transport-level failures.
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(CodeNetworkTimeout, "request to terminal timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(CodeNetworkTimeout, "request to terminal timed out", err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return newError(CodeDNSFailure, "terminal address lookup failed", err)
	}
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return newError(CodeConnectionRefused, "terminal refused connection", err)
	case errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		return newError(CodeHostUnreachable, "terminal host unreachable", err)
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return newError(CodeConnectionRefused, "terminal connection dropped", err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return newError(CodeHostUnreachable, "terminal connection failed", err)
	}

	return newError(CodeUnknown, err.Error(), err)
}

// classifyAPIError maps terminal-reported status codes to taxonomy members.
func classifyAPIError(apiErr *terminal.APIError) *Error {
	var e *Error
	switch apiErr.Code {
	case "declined", "do_not_honour":
		e = newError(CodeDeclined, "payment was declined", apiErr)
	case "insufficient_funds":
		e = newError(CodeInsufficientFunds, "insufficient funds", apiErr)
	case "expired_card":
		e = newError(CodeExpiredCard, "card has expired", apiErr)
	case "cancelled", "user_cancelled":
		e = newError(CodeTxCancelled, "transaction was cancelled", apiErr)
	case "transaction_not_found", "not_found":
		e = newError(CodeTxNotFound, "terminal has no record of the transaction", apiErr)
	case "busy":
		e = newError(CodeTerminalBusy, "terminal is busy", apiErr)
	case "offline":
		e = newError(CodeTerminalOffline, "terminal reported offline", apiErr)
	case "timeout":
		e = newError(CodeTxTimeout, "transaction timed out on the terminal", apiErr)
	case "invalid_amount", "invalid_currency", "invalid_request":
		e = newError(CodeInvalidRequest, apiErr.Message, apiErr)
	default:
		e = newError(CodeUnknown, apiErr.Error(), apiErr)
	}
	if apiErr.TransactionID != "" {
		e.TransactionID = apiErr.TransactionID
	}
	return e
}
