package payment

import (
	"strings"

	"github.com/Sam231221/AuraSwift-sub012/internal/modules/terminal"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Builder turns caller requests into well-formed terminal wire payloads:
// currency normalization plus a fresh idempotent reference per attempt, so a
// retried initiation can never double-charge.
type Builder struct {
	validate *validator.Validate
}

func NewBuilder() *Builder {
	return &Builder{validate: validator.New()}
}

// BuildSale validates the request and produces the sale wire payload.
func (b *Builder) BuildSale(req SaleRequest) (terminal.SalePayload, *Error) {
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if err := b.validate.Struct(req); err != nil {
		return terminal.SalePayload{}, newError(CodeInvalidRequest, validationMessage(err), err)
	}
	return terminal.SalePayload{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Reference:   newReference(),
		Description: req.Description,
	}, nil
}

// BuildRefund validates the request and produces the refund wire payload. The
// original terminal transaction id is mandatory.
func (b *Builder) BuildRefund(req RefundRequest) (terminal.RefundPayload, *Error) {
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if err := b.validate.Struct(req); err != nil {
		return terminal.RefundPayload{}, newError(CodeInvalidRequest, validationMessage(err), err)
	}
	return terminal.RefundPayload{
		Amount:                req.Amount,
		Currency:              req.Currency,
		Reference:             newReference(),
		OriginalTransactionID: req.OriginalTransactionID,
	}, nil
}

// newReference mints the per-attempt idempotent reference.
func newReference() string {
	return "AS-" + uuid.New().String()
}

// validationMessage flattens validator output into a single caller-friendly
// message naming the first offending field.
func validationMessage(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return "invalid request"
	}
	fe := errs[0]
	switch fe.Tag() {
	case "gt", "required":
		if fe.Field() == "Amount" {
			return "amount must be greater than 0"
		}
		return strings.ToLower(fe.Field()) + " is required"
	case "len", "alpha":
		if fe.Field() == "Currency" {
			return "currency must be a 3-letter code"
		}
	}
	return "invalid " + strings.ToLower(fe.Field())
}
