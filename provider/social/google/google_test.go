package google

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/authbridge/provider"
)

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
	if !strings.Contains(q.Get("scope"), "openid") {
		t.Fatalf("scope = %q", q.Get("scope"))
	}
}

func unverifiedIDToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","kid":"k1"}`))
	pb, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}
	payload := base64.RawURLEncoding.EncodeToString(pb)
	return header + "." + payload + ".sig"
}

func TestExchangeCodeSkipVerify(t *testing.T) {
	idToken := unverifiedIDToken(t, map[string]any{
		"sub":            "g-123",
		"email":          "jane@example.com",
		"email_verified": true,
		"name":           "Jane Doe",
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("code") != "good-code" {
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "g-token",
			"id_token":     idToken,
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	p, err := New(Config{
		ClientID:          "cid",
		ClientSecret:      "csecret",
		TokenEndpoint:     srv.URL,
		HTTPClient:        srv.Client(),
		SkipIDTokenVerify: true,
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	ex, err := p.ExchangeCode(context.Background(), "good-code", "https://app.example.com/callback")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if ex.AccessToken != "g-token" {
		t.Fatalf("access token = %q", ex.AccessToken)
	}
	if ex.Claims.Subject != "g-123" || ex.Claims.Email != "jane@example.com" || !ex.Claims.EmailVerified {
		t.Fatalf("unexpected claims: %+v", ex.Claims)
	}
	if ex.ExpiresIn != time.Hour {
		t.Fatalf("expires in = %v", ex.ExpiresIn)
	}
}

func TestExchangeCodeVerifiesSignature(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	signed := func(claims gjwt.MapClaims) string {
		tok := gjwt.NewWithClaims(gjwt.SigningMethodRS256, claims)
		tok.Header["kid"] = "k1"
		s, err := tok.SignedString(key)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}
	idToken := signed(gjwt.MapClaims{
		"iss":            "https://accounts.google.com",
		"aud":            "cid",
		"sub":            "g-123",
		"email":          "jane@example.com",
		"email_verified": true,
		"exp":            time.Now().Add(time.Hour).Unix(),
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"access_token": "g-token", "id_token": idToken})
	})
	mux.HandleFunc("/certs", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": "k1",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString([]byte{0x01, 0x00, 0x01}),
			}},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p, err := New(Config{
		ClientID:      "cid",
		ClientSecret:  "csecret",
		TokenEndpoint: srv.URL + "/token",
		JWKSEndpoint:  srv.URL + "/certs",
		HTTPClient:    srv.Client(),
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	ex, err := p.ExchangeCode(context.Background(), "any", "https://app.example.com/callback")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if ex.Claims.Subject != "g-123" || !ex.Claims.EmailVerified {
		t.Fatalf("unexpected claims: %+v", ex.Claims)
	}
}

func TestExchangeCodeRejectsWrongAudience(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodRS256, gjwt.MapClaims{
		"iss": "https://accounts.google.com",
		"aud": "someone-else",
		"sub": "g-123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	tok.Header["kid"] = "k1"
	idToken, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"access_token": "g-token", "id_token": idToken})
	})
	mux.HandleFunc("/certs", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": "k1",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString([]byte{0x01, 0x00, 0x01}),
			}},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p, err := New(Config{
		ClientID:      "cid",
		ClientSecret:  "csecret",
		TokenEndpoint: srv.URL + "/token",
		JWKSEndpoint:  srv.URL + "/certs",
		HTTPClient:    srv.Client(),
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	if _, err := p.ExchangeCode(context.Background(), "any", "https://app.example.com/callback"); !errors.Is(err, provider.ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestExchangeCodeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant", "error_description": "expired"})
	}))
	defer srv.Close()

	p, err := New(Config{
		ClientID:      "cid",
		ClientSecret:  "csecret",
		TokenEndpoint: srv.URL,
		HTTPClient:    srv.Client(),
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	if _, err := p.ExchangeCode(context.Background(), "stale", "https://app.example.com/callback"); !errors.Is(err, provider.ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestExchangeCodeBackendDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	client := srv.Client()
	endpoint := srv.URL
	srv.Close()

	p, err := New(Config{
		ClientID:      "cid",
		ClientSecret:  "csecret",
		TokenEndpoint: endpoint,
		HTTPClient:    client,
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	if _, err := p.ExchangeCode(context.Background(), "any", "https://app.example.com/callback"); !errors.Is(err, provider.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestBuildLogoutURLEmpty(t *testing.T) {
	p, err := New(Config{ClientID: "cid", ClientSecret: "csecret"})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if got := p.BuildLogoutURL("https://app.example.com"); got != "" {
		t.Fatalf("expected empty logout url, got %q", got)
	}
}
