// Package github implements provider.SocialProvider for GitHub OAuth 2.0.
// GitHub issues no ID token, so identity claims come from a follow-up call
// to the user API, with the emails API as fallback for accounts that keep
// their address private.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authbridge/provider"
)

const (
	defaultAuthEndpoint  = "https://github.com/login/oauth/authorize"
	defaultTokenEndpoint = "https://github.com/login/oauth/access_token"
	defaultUserEndpoint  = "https://api.github.com/user"
	defaultEmailEndpoint = "https://api.github.com/user/emails"
)

// Config holds the OAuth app registration. The endpoint fields exist for
// tests and default to GitHub's production URLs.
type Config struct {
	ClientID     string
	ClientSecret string
	Scopes       []string

	AuthEndpoint  string
	TokenEndpoint string
	UserEndpoint  string
	EmailEndpoint string

	HTTPClient *http.Client
}

// Provider is the GitHub OAuth backend.
type Provider struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("github: client ID and secret are required")
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"read:user", "user:email"}
	}
	if cfg.AuthEndpoint == "" {
		cfg.AuthEndpoint = defaultAuthEndpoint
	}
	if cfg.TokenEndpoint == "" {
		cfg.TokenEndpoint = defaultTokenEndpoint
	}
	if cfg.UserEndpoint == "" {
		cfg.UserEndpoint = defaultUserEndpoint
	}
	if cfg.EmailEndpoint == "" {
		cfg.EmailEndpoint = defaultEmailEndpoint
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Provider{cfg: cfg, http: client}, nil
}

func (p *Provider) Name() string { return "github" }

func (p *Provider) BuildAuthorizeURL(state, redirectURI string) string {
	u, err := url.Parse(p.cfg.AuthEndpoint)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("client_id", p.cfg.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("scope", strings.Join(p.cfg.Scopes, " "))
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String()
}

// BuildLogoutURL returns "". GitHub has no RP-initiated logout endpoint.
func (p *Provider) BuildLogoutURL(string) string { return "" }

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
	Error       string `json:"error"`
	ErrorDesc   string `json:"error_description"`
}

func (p *Provider) ExchangeCode(ctx context.Context, code, redirectURI string) (*provider.Exchange, error) {
	form := url.Values{}
	form.Set("client_id", p.cfg.ClientID)
	form.Set("client_secret", p.cfg.ClientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("%w: decode token response: %v", provider.ErrUnavailable, err)
	}
	if tr.Error != "" {
		return nil, fmt.Errorf("%w: %s %s", provider.ErrRejected, tr.Error, tr.ErrorDesc)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access_token in response", provider.ErrRejected)
	}

	claims, err := p.fetchClaims(ctx, tr.AccessToken)
	if err != nil {
		return nil, err
	}

	return &provider.Exchange{
		AccessToken: tr.AccessToken,
		Claims:      *claims,
	}, nil
}

type userInfo struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type emailInfo struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (p *Provider) fetchClaims(ctx context.Context, accessToken string) (*provider.Claims, error) {
	var info userInfo
	if err := p.apiGet(ctx, p.cfg.UserEndpoint, accessToken, &info); err != nil {
		return nil, err
	}

	claims := &provider.Claims{
		Subject: strconv.FormatInt(info.ID, 10),
		Email:   info.Email,
		Name:    info.Name,
	}
	if claims.Name == "" {
		claims.Name = info.Login
	}

	if claims.Email == "" {
		email, verified, err := p.primaryEmail(ctx, accessToken)
		if err != nil {
			return nil, err
		}
		claims.Email = email
		claims.EmailVerified = verified
	} else {
		// The user API only exposes a public address the user chose to
		// publish; treat it as verified.
		claims.EmailVerified = true
	}
	return claims, nil
}

func (p *Provider) primaryEmail(ctx context.Context, accessToken string) (string, bool, error) {
	var emails []emailInfo
	if err := p.apiGet(ctx, p.cfg.EmailEndpoint, accessToken, &emails); err != nil {
		return "", false, err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, true, nil
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email, true, nil
		}
	}
	if len(emails) > 0 {
		return emails[0].Email, emails[0].Verified, nil
	}
	return "", false, fmt.Errorf("%w: no email on account", provider.ErrRejected)
}

func (p *Provider) apiGet(ctx context.Context, endpoint, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: api status %d", provider.ErrRejected, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode api response: %v", provider.ErrUnavailable, err)
	}
	return nil
}
