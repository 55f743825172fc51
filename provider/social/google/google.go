// Package google implements provider.SocialProvider for Google sign-in via
// OpenID Connect. Authorization codes are exchanged at the token endpoint
// and the returned ID token is verified locally against Google's JWKS.
package google

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/MrEthical07/authbridge/provider"
)

const (
	defaultAuthEndpoint  = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenEndpoint = "https://oauth2.googleapis.com/token"
	defaultJWKSEndpoint  = "https://www.googleapis.com/oauth2/v3/certs"

	jwksMaxAge = time.Hour
)

var acceptedIssuers = []string{"https://accounts.google.com", "accounts.google.com"}

// Config holds the OAuth client registration. The endpoint fields exist for
// tests and default to Google's production URLs.
type Config struct {
	ClientID     string
	ClientSecret string
	Scopes       []string

	AuthEndpoint  string
	TokenEndpoint string
	JWKSEndpoint  string

	// HTTPClient overrides the default 10s-timeout client.
	HTTPClient *http.Client

	// SkipIDTokenVerify disables signature and claim checks. Tests only.
	SkipIDTokenVerify bool
}

// Provider is the Google OIDC backend.
type Provider struct {
	cfg  Config
	http *http.Client

	mu     sync.RWMutex
	keys   map[string]*rsa.PublicKey
	keysAt time.Time

	group singleflight.Group
}

func New(cfg Config) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("google: client ID and secret are required")
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"openid", "email", "profile"}
	}
	if cfg.AuthEndpoint == "" {
		cfg.AuthEndpoint = defaultAuthEndpoint
	}
	if cfg.TokenEndpoint == "" {
		cfg.TokenEndpoint = defaultTokenEndpoint
	}
	if cfg.JWKSEndpoint == "" {
		cfg.JWKSEndpoint = defaultJWKSEndpoint
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Provider{cfg: cfg, http: client}, nil
}

func (p *Provider) Name() string { return "google" }

func (p *Provider) BuildAuthorizeURL(state, redirectURI string) string {
	u, err := url.Parse(p.cfg.AuthEndpoint)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", p.cfg.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("scope", strings.Join(p.cfg.Scopes, " "))
	q.Set("state", state)
	q.Set("access_type", "offline")
	q.Set("include_granted_scopes", "true")
	u.RawQuery = q.Encode()
	return u.String()
}

// BuildLogoutURL returns "". Google has no RP-initiated logout endpoint;
// ending the local session is all a relying party can do.
func (p *Provider) BuildLogoutURL(string) string { return "" }

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Error        string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}

func (p *Provider) ExchangeCode(ctx context.Context, code, redirectURI string) (*provider.Exchange, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", p.cfg.ClientID)
	form.Set("client_secret", p.cfg.ClientSecret)
	form.Set("redirect_uri", redirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("%w: decode token response: %v", provider.ErrUnavailable, err)
	}
	if resp.StatusCode/100 != 2 || tr.Error != "" {
		return nil, fmt.Errorf("%w: token endpoint %d: %s %s", provider.ErrRejected, resp.StatusCode, tr.Error, tr.ErrorDesc)
	}
	if tr.IDToken == "" {
		return nil, fmt.Errorf("%w: no id_token in response", provider.ErrRejected)
	}

	claims, err := p.verifyIDToken(ctx, tr.IDToken)
	if err != nil {
		return nil, err
	}

	return &provider.Exchange{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresIn:    time.Duration(tr.ExpiresIn) * time.Second,
		Claims:       *claims,
	}, nil
}

func (p *Provider) verifyIDToken(ctx context.Context, idToken string) (*provider.Claims, error) {
	if p.cfg.SkipIDTokenVerify {
		return decodeUnverified(idToken)
	}

	var header struct {
		Alg string `json:"alg"`
		Kid string `json:"kid"`
	}
	parts := strings.Split(idToken, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: bad id_token format", provider.ErrRejected)
	}
	hb, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: bad id_token header", provider.ErrRejected)
	}
	if err := json.Unmarshal(hb, &header); err != nil {
		return nil, fmt.Errorf("%w: bad id_token header", provider.ErrRejected)
	}
	if header.Alg != "RS256" {
		return nil, fmt.Errorf("%w: unexpected alg %s", provider.ErrRejected, header.Alg)
	}

	key, err := p.keyForKid(ctx, header.Kid)
	if err != nil {
		return nil, err
	}

	tok, err := gjwt.Parse(idToken,
		func(t *gjwt.Token) (any, error) { return key, nil },
		gjwt.WithValidMethods([]string{"RS256"}),
		gjwt.WithAudience(p.cfg.ClientID),
		gjwt.WithExpirationRequired(),
		gjwt.WithLeeway(30*time.Second),
	)
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("%w: invalid id_token", provider.ErrRejected)
	}
	mc, ok := tok.Claims.(gjwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: invalid id_token claims", provider.ErrRejected)
	}

	iss, _ := mc["iss"].(string)
	issuerOK := false
	for _, accepted := range acceptedIssuers {
		if iss == accepted {
			issuerOK = true
			break
		}
	}
	if !issuerOK {
		return nil, fmt.Errorf("%w: bad issuer %q", provider.ErrRejected, iss)
	}

	return claimsFromMap(mc), nil
}

type jwksDoc struct {
	Keys []struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

func (p *Provider) keyForKid(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	p.mu.RLock()
	key, ok := p.keys[kid]
	fresh := time.Since(p.keysAt) < jwksMaxAge
	p.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}

	// Collapse concurrent refreshes; an unknown kid after a key rollover
	// would otherwise stampede the JWKS endpoint.
	_, err, _ := p.group.Do("jwks", func() (any, error) {
		return nil, p.refreshKeys(ctx)
	})
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	key, ok = p.keys[kid]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown signing key %q", provider.ErrRejected, kid)
	}
	return key, nil
}

func (p *Provider) refreshKeys(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.JWKSEndpoint, nil)
	if err != nil {
		return err
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%w: jwks endpoint %d", provider.ErrUnavailable, resp.StatusCode)
	}

	var doc jwksDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("%w: decode jwks: %v", provider.ErrUnavailable, err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if !strings.EqualFold(k.Kty, "RSA") {
			continue
		}
		nb, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			continue
		}
		eb, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			continue
		}
		e := 0
		for _, b := range eb {
			e = e<<8 | int(b)
		}
		if e == 0 {
			e = 65537
		}
		keys[k.Kid] = &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: e}
	}

	p.mu.Lock()
	p.keys = keys
	p.keysAt = time.Now()
	p.mu.Unlock()
	return nil
}

func decodeUnverified(idToken string) (*provider.Claims, error) {
	parts := strings.Split(idToken, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: bad id_token format", provider.ErrRejected)
	}
	pb, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: bad id_token payload", provider.ErrRejected)
	}
	var mc gjwt.MapClaims
	if err := json.Unmarshal(pb, &mc); err != nil {
		return nil, fmt.Errorf("%w: bad id_token payload", provider.ErrRejected)
	}
	return claimsFromMap(mc), nil
}

func claimsFromMap(mc gjwt.MapClaims) *provider.Claims {
	sub, _ := mc["sub"].(string)
	email, _ := mc["email"].(string)
	verified, _ := mc["email_verified"].(bool)
	name, _ := mc["name"].(string)
	return &provider.Claims{
		Subject:       sub,
		Email:         email,
		EmailVerified: verified,
		Name:          name,
	}
}
