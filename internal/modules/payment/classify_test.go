package payment

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/Sam231221/AuraSwift-sub012/internal/modules/terminal"
)

func TestClassify_SentinelErrors(t *testing.T) {
	cases := []struct {
		err       error
		code      string
		kind      Kind
		retryable bool
	}{
		{terminal.ErrOffline, CodeTerminalOffline, KindTerminal, true},
		{terminal.ErrBusy, CodeTerminalBusy, KindTerminal, true},
		{terminal.ErrAuthFailed, CodeAuthFailed, KindTerminal, false},
		{terminal.ErrNotFound, CodeTerminalNotFound, KindTerminal, false},
		{terminal.ErrNoCredential, CodeMissingCredential, KindConfiguration, false},
		{terminal.ErrInvalidAddress, CodeInvalidAddress, KindConfiguration, false},
		{terminal.ErrInvalidRange, CodeInvalidScanRange, KindConfiguration, false},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			got := Classify(tc.err)
			if got.Code != tc.code {
				t.Errorf("code = %s, want %s", got.Code, tc.code)
			}
			if got.Kind != tc.kind {
				t.Errorf("kind = %s, want %s", got.Kind, tc.kind)
			}
			if got.Retryable != tc.retryable {
				t.Errorf("retryable = %v, want %v", got.Retryable, tc.retryable)
			}
			if !errors.Is(got, tc.err) {
				t.Error("classified error must wrap its cause")
			}
		})
	}
}

func TestClassify_WrappedSentinel(t *testing.T) {
	err := fmt.Errorf("probe 192.168.1.50: %w", terminal.ErrOffline)
	if got := Classify(err); got.Code != CodeTerminalOffline {
		t.Errorf("code = %s, want %s", got.Code, CodeTerminalOffline)
	}
}

func TestClassify_APIErrors(t *testing.T) {
	cases := []struct {
		apiCode   string
		code      string
		retryable bool
	}{
		{"declined", CodeDeclined, false},
		{"do_not_honour", CodeDeclined, false},
		{"insufficient_funds", CodeInsufficientFunds, false},
		{"expired_card", CodeExpiredCard, false},
		{"cancelled", CodeTxCancelled, false},
		{"transaction_not_found", CodeTxNotFound, false},
		{"busy", CodeTerminalBusy, true},
		{"timeout", CodeTxTimeout, true},
		{"invalid_amount", CodeInvalidRequest, false},
		{"some_future_code", CodeUnknown, false},
	}
	for _, tc := range cases {
		t.Run(tc.apiCode, func(t *testing.T) {
			got := Classify(&terminal.APIError{Code: tc.apiCode, Message: "x"})
			if got.Code != tc.code {
				t.Errorf("code = %s, want %s", got.Code, tc.code)
			}
			if got.Retryable != tc.retryable {
				t.Errorf("retryable = %v, want %v", got.Retryable, tc.retryable)
			}
		})
	}
}

func TestClassify_APIErrorCarriesTransactionID(t *testing.T) {
	got := Classify(&terminal.APIError{Code: "declined", TransactionID: "tx-9"})
	if got.TransactionID != "tx-9" {
		t.Errorf("transaction id = %q, want tx-9", got.TransactionID)
	}
}

func TestClassify_TransportErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code string
	}{
		{"deadline", context.DeadlineExceeded, CodeNetworkTimeout},
		{"dns", &net.DNSError{Err: "no such host", Name: "till-3.local"}, CodeDNSFailure},
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, CodeConnectionRefused},
		{"host unreachable", &net.OpError{Op: "dial", Err: syscall.EHOSTUNREACH}, CodeHostUnreachable},
		{"reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, CodeConnectionRefused},
		{"other op error", &net.OpError{Op: "dial", Err: errors.New("no route")}, CodeHostUnreachable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)
			if got.Code != tc.code {
				t.Errorf("code = %s, want %s", got.Code, tc.code)
			}
			if got.Kind != KindNetwork {
				t.Errorf("kind = %s, want network", got.Kind)
			}
		})
	}
}

func TestClassify_Totality(t *testing.T) {
	if Classify(nil) != nil {
		t.Error("nil must classify to nil")
	}
	got := Classify(errors.New("something nobody anticipated"))
	if got == nil {
		t.Fatal("arbitrary error classified to nil")
	}
	if got.Code != CodeUnknown {
		t.Errorf("code = %s, want %s", got.Code, CodeUnknown)
	}
	if got.Retryable {
		t.Error("unknown errors must not be retryable")
	}
}

func TestClassify_PassthroughPreservesCorrelation(t *testing.T) {
	orig := newError(CodeCircuitOpen, "terminal unavailable, retry in 7s", nil).
		WithTerminal("term-2").WithTransaction("tx-4")
	wrapped := fmt.Errorf("initiate sale: %w", orig)

	got := Classify(wrapped)
	if got != orig {
		t.Fatal("already classified error must pass through unchanged")
	}
	if got.TerminalID != "term-2" || got.TransactionID != "tx-4" {
		t.Error("correlation ids lost in reclassification")
	}
}
