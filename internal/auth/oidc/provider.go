// Package oidc implements the hosted login flow against an OpenID Connect
// provider: authorization redirect, code exchange with ID token and nonce
// verification, and RP-initiated logout.
package oidc

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/schooldesk/schooldesk/internal/config"
)

var (
	ErrMissingCode    = errors.New("missing authorization code")
	ErrMissingIDToken = errors.New("missing id_token in token response")
	ErrNonceMismatch  = errors.New("id_token nonce mismatch")
	ErrMissingSubject = errors.New("id_token has no subject")
)

// DefaultScopes are requested on every login.
var DefaultScopes = []string{gooidc.ScopeOpenID, "email", "profile", gooidc.ScopeOfflineAccess}

// Claims is the profile extracted from a verified ID token.
type Claims struct {
	Subject         string
	Email           string
	FirstName       string
	LastName        string
	ProfileImageURL string
	Expiry          time.Time
}

// Map flattens the claims for storage in the session.
func (c *Claims) Map() map[string]string {
	m := map[string]string{"sub": c.Subject}
	if c.Email != "" {
		m["email"] = c.Email
	}
	if c.FirstName != "" {
		m["first_name"] = c.FirstName
	}
	if c.LastName != "" {
		m["last_name"] = c.LastName
	}
	if c.ProfileImageURL != "" {
		m["profile_image_url"] = c.ProfileImageURL
	}
	if !c.Expiry.IsZero() {
		m["exp"] = strconv.FormatInt(c.Expiry.Unix(), 10)
	}
	return m
}

// rawClaims accepts both the provider-specific and the standard OIDC
// names for profile fields.
type rawClaims struct {
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	GivenName       string `json:"given_name"`
	LastName        string `json:"last_name"`
	FamilyName      string `json:"family_name"`
	ProfileImageURL string `json:"profile_image_url"`
	Picture         string `json:"picture"`
	Nonce           string `json:"nonce"`
}

// Provider drives the authorization-code flow for one client registration.
type Provider struct {
	oauth2Config  *oauth2.Config
	verifier      *gooidc.IDTokenVerifier
	endSessionURL string
}

// NewProvider discovers the issuer's endpoints and builds a provider.
func NewProvider(ctx context.Context, cfg config.OIDC) (*Provider, error) {
	provider, err := gooidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	var discovery struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&discovery); err != nil {
		return nil, fmt.Errorf("failed to read discovery document: %w", err)
	}

	verifier := provider.Verifier(&gooidc.Config{ClientID: cfg.ClientID})
	return newProvider(cfg, provider.Endpoint(), verifier, discovery.EndSessionEndpoint), nil
}

func newProvider(cfg config.OIDC, endpoint oauth2.Endpoint, verifier *gooidc.IDTokenVerifier, endSessionURL string) *Provider {
	return &Provider{
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       DefaultScopes,
		},
		verifier:      verifier,
		endSessionURL: endSessionURL,
	}
}

// AuthCodeURL returns the provider URL to send the browser to.
func (p *Provider) AuthCodeURL(state, nonce string) string {
	return p.oauth2Config.AuthCodeURL(state, gooidc.Nonce(nonce), oauth2.SetAuthURLParam("prompt", "login consent"))
}

// Exchange trades an authorization code for tokens, verifies the ID token
// and its nonce, and returns the mapped claims plus the raw ID token.
func (p *Provider) Exchange(ctx context.Context, code, nonce string) (*Claims, string, error) {
	if code == "" {
		return nil, "", ErrMissingCode
	}

	token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("failed to exchange code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, "", ErrMissingIDToken
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, "", fmt.Errorf("failed to verify id_token: %w", err)
	}
	if idToken.Subject == "" {
		return nil, "", ErrMissingSubject
	}

	var raw rawClaims
	if err := idToken.Claims(&raw); err != nil {
		return nil, "", fmt.Errorf("failed to parse claims: %w", err)
	}
	if nonce == "" || raw.Nonce != nonce {
		return nil, "", ErrNonceMismatch
	}

	return &Claims{
		Subject:         idToken.Subject,
		Email:           raw.Email,
		FirstName:       firstNonEmpty(raw.FirstName, raw.GivenName),
		LastName:        firstNonEmpty(raw.LastName, raw.FamilyName),
		ProfileImageURL: firstNonEmpty(raw.ProfileImageURL, raw.Picture),
		Expiry:          idToken.Expiry,
	}, rawIDToken, nil
}

// LogoutURL builds the RP-initiated logout URL, or returns "" when the
// provider does not advertise an end_session_endpoint.
func (p *Provider) LogoutURL(idToken, postLogoutRedirect string) string {
	if p.endSessionURL == "" {
		return ""
	}
	u, err := url.Parse(p.endSessionURL)
	if err != nil {
		return ""
	}

	q := u.Query()
	q.Set("client_id", p.oauth2Config.ClientID)
	if idToken != "" {
		q.Set("id_token_hint", idToken)
	}
	if postLogoutRedirect != "" {
		q.Set("post_logout_redirect_uri", postLogoutRedirect)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// RandomToken returns a URL-safe random value for state and nonce.
func RandomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
