package terminal

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func terminalFor(srv *httptest.Server, credential string) Terminal {
	host, portStr, _ := net.SplitHostPort(srv.Listener.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return Terminal{ID: "t-1", Address: host, Port: port, Credential: credential}
}

// unsignedJWT builds a token whose exp claim ParseUnverified can read.
func unsignedJWT(exp time.Time) string {
	enc := func(v interface{}) string {
		b, _ := json.Marshal(v)
		return base64.RawURLEncoding.EncodeToString(b)
	}
	header := enc(map[string]string{"alg": "none", "typ": "JWT"})
	claims := enc(map[string]interface{}{"exp": exp.Unix()})
	return header + "." + claims + "."
}

func TestClient_SessionIsCachedAcrossCalls(t *testing.T) {
	var sessionHits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/pos/v1/session", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&sessionHits, 1)
		json.NewEncoder(w).Encode(map[string]string{
			"access_token": unsignedJWT(time.Now().Add(time.Hour)),
		})
	})
	mux.HandleFunc("/pos/v1/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(StatusReport{Status: "ready"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(time.Second)
	term := terminalFor(srv, "key")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.Status(ctx, term); err != nil {
			t.Fatalf("Status %d: %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&sessionHits); got != 1 {
		t.Errorf("session opened %d times, want 1", got)
	}
}

func TestClient_ExpiredTokenIsRefreshed(t *testing.T) {
	var sessionHits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/pos/v1/session", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&sessionHits, 1)
		// Already expired: every request must open a fresh session.
		json.NewEncoder(w).Encode(map[string]string{
			"access_token": unsignedJWT(time.Now().Add(-time.Minute)),
		})
	})
	mux.HandleFunc("/pos/v1/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(StatusReport{Status: "ready"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(time.Second)
	term := terminalFor(srv, "key")
	ctx := context.Background()

	c.Status(ctx, term)
	c.Status(ctx, term)
	if got := atomic.LoadInt32(&sessionHits); got != 2 {
		t.Errorf("session opened %d times, want 2", got)
	}
}

func TestClient_UnauthorizedDropsSession(t *testing.T) {
	var sessionHits int32
	var authorized atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/pos/v1/session", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&sessionHits, 1)
		json.NewEncoder(w).Encode(map[string]string{"access_token": unsignedJWT(time.Now().Add(time.Hour))})
	})
	mux.HandleFunc("/pos/v1/status", func(w http.ResponseWriter, r *http.Request) {
		if !authorized.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(StatusReport{Status: "ready"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(time.Second)
	term := terminalFor(srv, "key")
	ctx := context.Background()

	if _, err := c.Status(ctx, term); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("err = %v, want ErrAuthFailed", err)
	}

	// The stale session was dropped; the next call re-authenticates and works.
	authorized.Store(true)
	if _, err := c.Status(ctx, term); err != nil {
		t.Fatalf("Status after re-auth: %v", err)
	}
	if got := atomic.LoadInt32(&sessionHits); got != 2 {
		t.Errorf("session opened %d times, want 2", got)
	}
}

func TestClient_MissingCredential(t *testing.T) {
	c := NewClient(time.Second)
	_, err := c.Status(context.Background(), Terminal{ID: "t", Address: "127.0.0.1", Port: 1})
	if !errors.Is(err, ErrNoCredential) {
		t.Fatalf("err = %v, want ErrNoCredential", err)
	}
}

func TestClient_BadCredential(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pos/v1/session", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(time.Second)
	err := c.Connect(context.Background(), terminalFor(srv, "wrong-key"))
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("err = %v, want ErrAuthFailed", err)
	}
}

func TestClient_APIErrorEnvelope(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pos/v1/session", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": unsignedJWT(time.Now().Add(time.Hour))})
	})
	mux.HandleFunc("/pos/v1/sale", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{
			"code":           "declined",
			"message":        "do not honour",
			"transaction_id": "vt-7",
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(time.Second)
	_, err := c.Sale(context.Background(), terminalFor(srv, "key"), SalePayload{Amount: 100, Currency: "GBP", Reference: "r"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type %T, want *APIError", err)
	}
	if apiErr.Code != "declined" {
		t.Errorf("code = %q, want declined", apiErr.Code)
	}
	if apiErr.TransactionID != "vt-7" {
		t.Errorf("transaction id = %q, want vt-7", apiErr.TransactionID)
	}
}

func TestClient_SendsBearerToken(t *testing.T) {
	token := unsignedJWT(time.Now().Add(time.Hour))
	mux := http.NewServeMux()
	mux.HandleFunc("/pos/v1/session", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": token})
	})
	mux.HandleFunc("/pos/v1/capabilities", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != fmt.Sprintf("Bearer %s", token) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(CapabilityReport{
			SerialNumber: "SN-1",
			Model:        "P400",
			TerminalType: "dedicated",
			InputMethods: []string{"nfc", "chip"},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(time.Second)
	report, err := c.Capabilities(context.Background(), terminalFor(srv, "key"))
	if err != nil {
		t.Fatalf("Capabilities: %v", err)
	}
	if report.Model != "P400" || len(report.InputMethods) != 2 {
		t.Errorf("unexpected report %+v", report)
	}
}
