package payment

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Sam231221/AuraSwift-sub012/internal/modules/errlog"
	"github.com/Sam231221/AuraSwift-sub012/internal/modules/terminal"
	"github.com/go-chi/chi/v5"
)

// Handler exposes the payment engine to the business layer over HTTP.
type Handler struct {
	manager  *Manager
	registry *terminal.Registry
	logger   *errlog.Logger
}

func NewHandler(manager *Manager, registry *terminal.Registry, logger *errlog.Logger) *Handler {
	return &Handler{manager: manager, registry: registry, logger: logger}
}

func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Post("/sale", h.sale)
		r.Post("/refund", h.refund)
		r.Get("/active", h.listActive)
		r.Get("/active/{id}", h.getActive)
		r.Get("/errors/metrics", h.errorMetrics)
		r.Get("/breakers", h.breakerStats)
		r.Get("/{id}", h.status)
		r.Post("/{id}/cancel", h.cancel)
	})
}

type saleBody struct {
	TerminalID string `json:"terminal_id"`
	SaleRequest
}

type refundBody struct {
	TerminalID string `json:"terminal_id"`
	RefundRequest
}

func (h *Handler) sale(w http.ResponseWriter, r *http.Request) {
	var body saleBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	sess, ok := h.openSession(w, r, body.TerminalID)
	if !ok {
		return
	}
	result, err := h.manager.InitiateSale(r.Context(), sess, body.SaleRequest)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusCreated, result)
}

func (h *Handler) refund(w http.ResponseWriter, r *http.Request) {
	var body refundBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	sess, ok := h.openSession(w, r, body.TerminalID)
	if !ok {
		return
	}
	result, err := h.manager.InitiateRefund(r.Context(), sess, body.RefundRequest)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusCreated, result)
}

// status queries the terminal for a transaction by its terminal-assigned id.
// Active transactions resolve their terminal automatically; settled ones need
// the terminal_id query parameter.
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	terminalID := r.URL.Query().Get("terminal_id")
	if terminalID == "" {
		if tx, ok := h.manager.findByTerminalTxID(id); ok {
			terminalID = tx.Terminal.ID
		}
	}
	if terminalID == "" {
		respond(w, http.StatusBadRequest, map[string]string{"error": "terminal_id required for inactive transactions"})
		return
	}
	sess, ok := h.openSession(w, r, terminalID)
	if !ok {
		return
	}
	state, err := h.manager.GetTransactionStatus(r.Context(), sess, id)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"state": string(state)})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	cancelled, err := h.manager.CancelTransaction(r.Context(), nil, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

func (h *Handler) listActive(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, h.manager.ActiveTransactions())
}

func (h *Handler) getActive(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.manager.GetActiveTransaction(chi.URLParam(r, "id"))
	if !ok {
		respond(w, http.StatusNotFound, map[string]string{"error": "no active transaction"})
		return
	}
	respond(w, http.StatusOK, snapshot)
}

func (h *Handler) errorMetrics(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, h.logger.Metrics())
}

func (h *Handler) breakerStats(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, h.manager.BreakerStats())
}

// openSession resolves the terminal and verifies its connection, writing the
// error response itself when either step fails.
func (h *Handler) openSession(w http.ResponseWriter, r *http.Request, terminalID string) (*Session, bool) {
	t, err := h.registry.Get(terminalID)
	if err != nil {
		respond(w, http.StatusNotFound, map[string]string{"error": "terminal not found"})
		return nil, false
	}
	sess, err := h.manager.OpenSession(r.Context(), t)
	if err != nil {
		respondError(w, err)
		return nil, false
	}
	return sess, true
}

// errorResponse is the classified error plus its user-facing guidance.
type errorResponse struct {
	Error    *Error   `json:"error"`
	Guidance Guidance `json:"guidance"`
}

func respondError(w http.ResponseWriter, err error) {
	var cerr *Error
	if !errors.As(err, &cerr) {
		respond(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	respond(w, httpStatusFor(cerr), errorResponse{Error: cerr, Guidance: cerr.Guidance()})
}

func httpStatusFor(e *Error) int {
	switch e.Kind {
	case KindConfiguration:
		return http.StatusBadRequest
	case KindNetwork:
		return http.StatusBadGateway
	case KindTerminal:
		if e.Code == CodeCircuitOpen || e.Code == CodeTerminalBusy {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	case KindTransaction:
		if e.Code == CodeTxNotFound {
			return http.StatusNotFound
		}
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
