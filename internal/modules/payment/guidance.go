package payment

// Guidance is the user-facing rendering of a classified error: what happened,
// what to do about it, and whether "try again" is an honest suggestion.
type Guidance struct {
	Title          string   `json:"title"`
	Message        string   `json:"message"`
	Suggestions    []string `json:"suggestions"`
	CanRetry       bool     `json:"can_retry"`
	RequiresAction bool     `json:"requires_action"`
}

var guidanceByCode = map[string]Guidance{
	CodeConnectionRefused: {
		Title:   "Terminal unreachable",
		Message: "The card terminal refused the connection.",
		Suggestions: []string{
			"Check that the terminal is switched on",
			"Check the network cable or Wi-Fi connection",
			"Try the payment again",
		},
		CanRetry: true,
	},
	CodeNetworkTimeout: {
		Title:   "Connection timed out",
		Message: "The card terminal did not respond in time.",
		Suggestions: []string{
			"Try the payment again",
			"Check the network connection to the terminal",
		},
		CanRetry: true,
	},
	CodeHostUnreachable: {
		Title:   "Terminal unreachable",
		Message: "No network route to the card terminal.",
		Suggestions: []string{
			"Check that the terminal is on the same network",
			"Restart the terminal and try again",
		},
		CanRetry: true,
	},
	CodeDNSFailure: {
		Title:   "Terminal address not found",
		Message: "The terminal's network address could not be resolved.",
		Suggestions: []string{
			"Check the terminal address in settings",
			"Use the terminal's IP address instead of a hostname",
		},
		CanRetry:       true,
		RequiresAction: true,
	},
	CodeTerminalOffline: {
		Title:   "Terminal offline",
		Message: "The card terminal reported that it is offline.",
		Suggestions: []string{
			"Wake or restart the terminal",
			"Try the payment again once the terminal is ready",
		},
		CanRetry: true,
	},
	CodeTerminalBusy: {
		Title:   "Terminal busy",
		Message: "The terminal is processing another transaction.",
		Suggestions: []string{
			"Wait for the current transaction to finish",
			"Try the payment again",
		},
		CanRetry: true,
	},
	CodeAuthFailed: {
		Title:   "Terminal authentication failed",
		Message: "The terminal rejected this till's credentials.",
		Suggestions: []string{
			"Re-pair the terminal in settings",
			"Check the terminal API key",
		},
		RequiresAction: true,
	},
	CodeTerminalNotFound: {
		Title:   "Terminal not found",
		Message: "The selected terminal is no longer available.",
		Suggestions: []string{
			"Run terminal discovery again",
			"Select a different terminal",
		},
		RequiresAction: true,
	},
	CodeCircuitOpen: {
		Title:   "Terminal temporarily unavailable",
		Message: "The terminal has failed repeatedly and is in a cooldown period.",
		Suggestions: []string{
			"Wait for the cooldown to finish and try again",
			"Use another terminal or payment method in the meantime",
		},
		CanRetry: true,
	},
	CodeDeclined: {
		Title:   "Payment declined",
		Message: "The card was declined by the issuer.",
		Suggestions: []string{
			"Ask the customer for another card",
			"Offer an alternative payment method",
		},
		RequiresAction: true,
	},
	CodeInsufficientFunds: {
		Title:   "Insufficient funds",
		Message: "The card does not have enough funds for this payment.",
		Suggestions: []string{
			"Ask the customer for another card",
			"Offer to split the payment",
		},
		RequiresAction: true,
	},
	CodeExpiredCard: {
		Title:   "Card expired",
		Message: "The presented card has expired.",
		Suggestions: []string{
			"Ask the customer for a valid card",
		},
		RequiresAction: true,
	},
	CodeTxTimeout: {
		Title:   "Payment timed out",
		Message: "The transaction did not complete in time.",
		Suggestions: []string{
			"Check the terminal for an unfinished prompt",
			"Verify whether the customer was charged before retrying",
		},
		CanRetry: true,
	},
	CodeTxCancelled: {
		Title:   "Payment cancelled",
		Message: "The transaction was cancelled.",
		Suggestions: []string{
			"Start a new payment if this was unintended",
		},
	},
	CodeTxNotFound: {
		Title:   "Transaction not found",
		Message: "The terminal has no record of this transaction.",
		Suggestions: []string{
			"Check the original transaction reference",
			"Look the transaction up in the terminal's journal",
		},
		RequiresAction: true,
	},
	CodeUnverifiedSession: {
		Title:   "Terminal not connected",
		Message: "The terminal connection has not been verified.",
		Suggestions: []string{
			"Verify the terminal connection and try again",
		},
		RequiresAction: true,
	},
	CodeInvalidRequest: {
		Title:   "Invalid payment request",
		Message: "The payment request was rejected before reaching the terminal.",
		Suggestions: []string{
			"Check the amount and currency",
		},
		RequiresAction: true,
	},
}

var configGuidance = Guidance{
	Title:   "Terminal configuration problem",
	Message: "The terminal configuration is invalid.",
	Suggestions: []string{
		"Check the terminal settings",
		"Run terminal discovery again",
	},
	RequiresAction: true,
}

var unknownGuidance = Guidance{
	Title:   "Payment error",
	Message: "An unexpected error occurred while talking to the terminal.",
	Suggestions: []string{
		"Try the payment again",
		"Use another payment method if the problem persists",
	},
	CanRetry: true,
}

// Guidance maps the error to its user-facing title, message and remediation.
func (e *Error) Guidance() Guidance {
	if g, ok := guidanceByCode[e.Code]; ok {
		return g
	}
	if e.Kind == KindConfiguration {
		return configGuidance
	}
	return unknownGuidance
}
