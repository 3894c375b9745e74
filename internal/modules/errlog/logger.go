// Package errlog provides structured, PII-redacted error logging and the
// in-memory error aggregation backing the engine's observability endpoints.
package errlog

import (
	"strings"
	"time"

	"go.uber.org/zap"
)

// Entry is the classified-error view the logger records. The payment module
// converts its taxonomy errors into this shape so errlog stays a leaf package.
type Entry struct {
	Code          string
	Kind          string
	Message       string
	Severity      string // low | medium | high | critical
	Retryable     bool
	TerminalID    string
	TransactionID string
}

// Logger logs classified errors with sensitive context redacted and feeds the
// metrics aggregator. Aggregation is observability-only and never drives
// control flow.
type Logger struct {
	zl  *zap.Logger
	agg *aggregator
}

func New(zl *zap.Logger) *Logger {
	if zl == nil {
		zl = zap.NewNop()
	}
	return &Logger{zl: zl, agg: newAggregator(aggregationWindow)}
}

// LogError records one classified error. Context values pass through Redact
// before reaching the log sink.
func (l *Logger) LogError(e Entry, context map[string]interface{}) {
	fields := []zap.Field{
		zap.String("code", e.Code),
		zap.String("kind", e.Kind),
		zap.String("severity", e.Severity),
		zap.Bool("retryable", e.Retryable),
	}
	if e.TerminalID != "" {
		fields = append(fields, zap.String("terminal_id", e.TerminalID))
	}
	if e.TransactionID != "" {
		fields = append(fields, zap.String("transaction_id", e.TransactionID))
	}
	if len(context) > 0 {
		fields = append(fields, zap.Any("context", Redact(context)))
	}

	switch e.Severity {
	case "critical", "high":
		l.zl.Error(e.Message, fields...)
	default:
		l.zl.Warn(e.Message, fields...)
	}

	l.agg.record(e, time.Now())
}

// Metrics returns the aggregated error counts for the current window.
func (l *Logger) Metrics() Metrics {
	return l.agg.metrics(time.Now())
}

// ── Redaction ─────────────────────────────────────────────────────────────────

// sensitiveKeys are matched after normalization (lowercase, separators removed),
// so "card_number", "CardNumber" and "card-number" all redact.
var sensitiveKeys = map[string]struct{}{
	"credential":     {},
	"credentials":    {},
	"apikey":         {},
	"apisecret":      {},
	"password":       {},
	"pin":            {},
	"pinblock":       {},
	"cardnumber":     {},
	"pan":            {},
	"cvv":            {},
	"cvc":            {},
	"cvv2":           {},
	"authcode":       {},
	"authorization":  {},
	"token":          {},
	"accesstoken":    {},
	"sessiontoken":   {},
	"secret":         {},
	"track2":         {},
	"expirydate":     {},
	"cardholdername": {},
}

// Redact walks maps and slices at any depth and replaces values under sensitive
// keys with "[REDACTED]". The input is never mutated.
func Redact(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			if isSensitiveKey(k) {
				out[k] = "[REDACTED]"
				continue
			}
			out[k] = Redact(inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = Redact(inner)
		}
		return out
	default:
		return v
	}
}

func isSensitiveKey(k string) bool {
	normalized := strings.ToLower(k)
	normalized = strings.ReplaceAll(normalized, "_", "")
	normalized = strings.ReplaceAll(normalized, "-", "")
	_, ok := sensitiveKeys[normalized]
	return ok
}
