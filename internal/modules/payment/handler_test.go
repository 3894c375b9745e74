package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Sam231221/AuraSwift-sub012/internal/modules/errlog"
	"github.com/Sam231221/AuraSwift-sub012/internal/modules/terminal"
	"github.com/go-chi/chi/v5"
)

func newTestHandler(t *testing.T, f *fakeTerminal) (*Handler, *chi.Mux) {
	registry := terminal.NewRegistry(nopStore{})
	if f != nil {
		registry.Upsert(context.Background(), f.terminal())
	}
	m := newTestManager(t)
	h := NewHandler(m, registry, errlog.New(nil))
	router := chi.NewRouter()
	h.RegisterRoutes(router)
	return h, router
}

type nopStore struct{}

func (nopStore) Load(ctx context.Context) ([]terminal.Terminal, error)  { return nil, nil }
func (nopStore) Save(ctx context.Context, ts []terminal.Terminal) error { return nil }

func TestHandler_SaleEndToEnd(t *testing.T) {
	f := newFakeTerminal(t, "pending", "authorizing", "processing", "completed")
	_, router := newTestHandler(t, f)

	body := `{"terminal_id":"term-test","amount":1500,"currency":"gbp"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/sale", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var result InitiateResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.TransactionID == "" || result.TerminalTransactionID != "vt-100" {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestHandler_SaleUnknownTerminal(t *testing.T) {
	_, router := newTestHandler(t, nil)

	body := `{"terminal_id":"ghost","amount":1500,"currency":"GBP"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/sale", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandler_SaleValidationError(t *testing.T) {
	f := newFakeTerminal(t, "pending")
	_, router := newTestHandler(t, f)

	body := `{"terminal_id":"term-test","amount":-5,"currency":"GBP"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/sale", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body = %s", rec.Code, rec.Body.String())
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error.Code != CodeInvalidRequest {
		t.Errorf("code = %s, want %s", resp.Error.Code, CodeInvalidRequest)
	}
	if resp.Guidance.Title == "" {
		t.Error("error response missing guidance")
	}
}

func TestHandler_RefundNotFoundMapsTo404(t *testing.T) {
	f := newFakeTerminal(t, "pending")
	_, router := newTestHandler(t, f)

	body := `{"terminal_id":"term-test","amount":500,"currency":"GBP","original_transaction_id":"no-such-tx"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/refund", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404; body = %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_StatusAndCancel(t *testing.T) {
	f := newFakeTerminal(t, "pending", "awaiting_card")
	_, router := newTestHandler(t, f)

	body := `{"terminal_id":"term-test","amount":800,"currency":"GBP"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/sale", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("sale status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var result InitiateResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}

	// Status of an active transaction resolves its terminal automatically.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/payments/"+result.TerminalTransactionID, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var statusResp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &statusResp); err != nil {
		t.Fatal(err)
	}
	if statusResp["state"] == "" {
		t.Error("status response missing state")
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/payments/"+result.TerminalTransactionID+"/cancel", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var cancelResp map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &cancelResp); err != nil {
		t.Fatal(err)
	}
	if !cancelResp["cancelled"] {
		t.Error("cancellation not accepted")
	}
}

func TestHandler_StatusOfUnknownTransactionNeedsTerminal(t *testing.T) {
	_, router := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/never-seen", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandler_ErrorMetricsEndpoint(t *testing.T) {
	_, router := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/errors/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var m errlog.Metrics
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
}

func TestHttpStatusFor(t *testing.T) {
	cases := []struct {
		code string
		want int
	}{
		{CodeInvalidRequest, http.StatusBadRequest},
		{CodeNetworkTimeout, http.StatusBadGateway},
		{CodeCircuitOpen, http.StatusServiceUnavailable},
		{CodeTerminalBusy, http.StatusServiceUnavailable},
		{CodeTerminalOffline, http.StatusBadGateway},
		{CodeDeclined, http.StatusUnprocessableEntity},
		{CodeTxNotFound, http.StatusNotFound},
		{CodeUnknown, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			if got := httpStatusFor(newError(tc.code, "x", nil)); got != tc.want {
				t.Errorf("httpStatusFor(%s) = %d, want %d", tc.code, got, tc.want)
			}
		})
	}
}
