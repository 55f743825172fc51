package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/MrEthical07/authbridge/provider"
)

func newTestProvider(t *testing.T, handler http.Handler) (*Provider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p, err := New(Config{
		ClientID:      "cid",
		ClientSecret:  "csecret",
		TokenEndpoint: srv.URL + "/login/oauth/access_token",
		UserEndpoint:  srv.URL + "/user",
		EmailEndpoint: srv.URL + "/user/emails",
		HTTPClient:    srv.Client(),
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return p, srv
}

func TestBuildAuthorizeURL(t *testing.T) {
	p, err := New(Config{ClientID: "cid", ClientSecret: "csecret"})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	raw := p.BuildAuthorizeURL("state-123", "https://app.example.com/callback")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	q := u.Query()
	if q.Get("client_id") != "cid" {
		t.Fatalf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("state") != "state-123" {
		t.Fatalf("state = %q", q.Get("state"))
	}
	if q.Get("redirect_uri") != "https://app.example.com/callback" {
		t.Fatalf("redirect_uri = %q", q.Get("redirect_uri"))
	}
	if !strings.Contains(q.Get("scope"), "user:email") {
		t.Fatalf("scope = %q", q.Get("scope"))
	}
}

func TestExchangeCodeFetchesClaims(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("code") != "good-code" {
			json.NewEncoder(w).Encode(map[string]string{"error": "bad_verification_code"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "gh-token", "token_type": "bearer"})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gh-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"id": 42, "login": "jane", "name": "Jane Doe", "email": "jane@example.com"})
	})
	p, _ := newTestProvider(t, mux)

	ex, err := p.ExchangeCode(context.Background(), "good-code", "https://app.example.com/callback")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if ex.AccessToken != "gh-token" {
		t.Fatalf("access token = %q", ex.AccessToken)
	}
	if ex.Claims.Subject != "42" || ex.Claims.Email != "jane@example.com" || ex.Claims.Name != "Jane Doe" {
		t.Fatalf("unexpected claims: %+v", ex.Claims)
	}
	if !ex.Claims.EmailVerified {
		t.Fatal("expected public email to be treated as verified")
	}
}

func TestExchangeCodePrivateEmailFallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "gh-token"})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": 42, "login": "jane"})
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"email": "old@example.com", "primary": false, "verified": true},
			{"email": "jane@example.com", "primary": true, "verified": true},
		})
	})
	p, _ := newTestProvider(t, mux)

	ex, err := p.ExchangeCode(context.Background(), "any", "https://app.example.com/callback")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if ex.Claims.Email != "jane@example.com" || !ex.Claims.EmailVerified {
		t.Fatalf("unexpected claims: %+v", ex.Claims)
	}
	if ex.Claims.Name != "jane" {
		t.Fatalf("expected login fallback for name, got %q", ex.Claims.Name)
	}
}

func TestExchangeCodeRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"error": "bad_verification_code", "error_description": "expired"})
	})
	p, _ := newTestProvider(t, mux)

	if _, err := p.ExchangeCode(context.Background(), "stale", "https://app.example.com/callback"); !errors.Is(err, provider.ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestExchangeCodeBackendDown(t *testing.T) {
	p, srv := newTestProvider(t, http.NotFoundHandler())
	srv.Close()

	if _, err := p.ExchangeCode(context.Background(), "any", "https://app.example.com/callback"); !errors.Is(err, provider.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
