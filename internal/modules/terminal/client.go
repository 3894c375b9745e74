package terminal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// Wire payloads for the terminal's local POS API. The engine is the exclusive
// client of this API; the payment module builds these and never talks HTTP itself.

type SalePayload struct {
	Amount      int64  `json:"amount"` // minor currency units
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
	Description string `json:"description,omitempty"`
}

type RefundPayload struct {
	Amount                int64  `json:"amount"`
	Currency              string `json:"currency"`
	Reference             string `json:"reference"`
	OriginalTransactionID string `json:"original_transaction_id"`
}

// TxResponse is the terminal's view of a transaction.
type TxResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
}

// CapabilityReport is what the terminal returns from capability detection.
type CapabilityReport struct {
	SerialNumber string   `json:"serial_number"`
	Model        string   `json:"model"`
	TerminalType string   `json:"terminal_type"` // dedicated | device_based
	InputMethods []string `json:"input_methods"` // nfc, card_present, chip, swipe, tap
}

// StatusReport is the liveness endpoint payload.
type StatusReport struct {
	Status string `json:"status"` // ready | busy | offline
}

type sessionToken struct {
	raw       string
	expiresAt time.Time
}

func (s sessionToken) valid() bool {
	// Refresh a little early so an in-flight request never rides an expired token.
	return s.raw != "" && time.Until(s.expiresAt) > 10*time.Second
}

// Client is the thin request/response transport to a terminal's local API.
// Safe for concurrent use; one session token is held per terminal id.
type Client struct {
	http *http.Client

	mu       sync.Mutex
	sessions map[string]sessionToken
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:     &http.Client{Timeout: timeout},
		sessions: make(map[string]sessionToken),
	}
}

// Connect opens (or refreshes) an authenticated session with the terminal.
func (c *Client) Connect(ctx context.Context, t Terminal) error {
	_, err := c.session(ctx, t, true)
	return err
}

// Status performs the cheap liveness check used by discovery and by the
// transaction manager immediately before initiating a transaction.
func (c *Client) Status(ctx context.Context, t Terminal) (StatusReport, error) {
	var out StatusReport
	if err := c.do(ctx, t, http.MethodGet, "/pos/v1/status", nil, &out); err != nil {
		return StatusReport{}, err
	}
	return out, nil
}

// Capabilities queries the terminal for supported input methods and device class.
func (c *Client) Capabilities(ctx context.Context, t Terminal) (CapabilityReport, error) {
	var out CapabilityReport
	if err := c.do(ctx, t, http.MethodGet, "/pos/v1/capabilities", nil, &out); err != nil {
		return CapabilityReport{}, err
	}
	return out, nil
}

func (c *Client) Sale(ctx context.Context, t Terminal, p SalePayload) (TxResponse, error) {
	var out TxResponse
	if err := c.do(ctx, t, http.MethodPost, "/pos/v1/sale", p, &out); err != nil {
		return TxResponse{}, err
	}
	return out, nil
}

func (c *Client) Refund(ctx context.Context, t Terminal, p RefundPayload) (TxResponse, error) {
	var out TxResponse
	if err := c.do(ctx, t, http.MethodPost, "/pos/v1/refund", p, &out); err != nil {
		return TxResponse{}, err
	}
	return out, nil
}

// TransactionStatus is the one-shot status query the poller is built on.
func (c *Client) TransactionStatus(ctx context.Context, t Terminal, terminalTxID string) (TxResponse, error) {
	var out TxResponse
	path := "/pos/v1/transactions/" + terminalTxID
	if err := c.do(ctx, t, http.MethodGet, path, nil, &out); err != nil {
		return TxResponse{}, err
	}
	return out, nil
}

// CancelTransaction asks the terminal to abort an in-progress transaction.
func (c *Client) CancelTransaction(ctx context.Context, t Terminal, terminalTxID string) (TxResponse, error) {
	var out TxResponse
	path := "/pos/v1/transactions/" + terminalTxID + "/cancel"
	if err := c.do(ctx, t, http.MethodPost, path, nil, &out); err != nil {
		return TxResponse{}, err
	}
	return out, nil
}

// ── Session handling ──────────────────────────────────────────────────────────

// session returns a valid access token for the terminal, opening a new session
// when none exists, the cached one is near expiry, or force is set.
func (c *Client) session(ctx context.Context, t Terminal, force bool) (string, error) {
	if t.Credential == "" {
		return "", ErrNoCredential
	}

	c.mu.Lock()
	tok, ok := c.sessions[t.ID]
	c.mu.Unlock()
	if ok && tok.valid() && !force {
		return tok.raw, nil
	}

	body, _ := json.Marshal(map[string]string{"api_key": t.Credential})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL()+"/pos/v1/session", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", ErrAuthFailed
	}
	if resp.StatusCode != http.StatusOK {
		return "", decodeAPIError(resp)
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode session response: %w", err)
	}

	c.mu.Lock()
	c.sessions[t.ID] = sessionToken{raw: out.AccessToken, expiresAt: tokenExpiry(out.AccessToken)}
	c.mu.Unlock()
	return out.AccessToken, nil
}

// tokenExpiry reads the exp claim from the terminal-issued JWT. The token is not
// verified here: the terminal is the issuer and the only consumer, we only need
// to know when to refresh. Tokens without exp get a conservative default.
func tokenExpiry(raw string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(raw, claims); err == nil {
		if exp, ok := claims["exp"].(float64); ok {
			return time.Unix(int64(exp), 0)
		}
	}
	return time.Now().Add(5 * time.Minute)
}

// ── Request plumbing ──────────────────────────────────────────────────────────

func (c *Client) do(ctx context.Context, t Terminal, method, path string, in, out interface{}) error {
	token, err := c.session(ctx, t, false)
	if err != nil {
		return err
	}

	var body *bytes.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.BaseURL()+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		// Session expired server-side; drop it so the next call re-authenticates.
		c.mu.Lock()
		delete(c.sessions, t.ID)
		c.mu.Unlock()
		return ErrAuthFailed
	case resp.StatusCode == http.StatusNotFound:
		return decodeAPIError(resp)
	case resp.StatusCode >= 400:
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{HTTPStatus: resp.Status}
	var envelope struct {
		Code          string `json:"code"`
		Message       string `json:"message"`
		TransactionID string `json:"transaction_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil {
		apiErr.Code = envelope.Code
		apiErr.Message = envelope.Message
		apiErr.TransactionID = envelope.TransactionID
	}
	if apiErr.Code == "" {
		apiErr.Code = "http_" + resp.Status
	}
	return apiErr
}
