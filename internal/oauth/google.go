package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/fastygo/dashboard/domain"
)

const googleIssuer = "https://accounts.google.com"

// Config holds the Google OAuth client registration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

func (c Config) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURL != ""
}

// Provider runs the authorization-code flow and turns the id_token into a principal.
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*domain.Principal, error)
}

type googleProvider struct {
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewGoogle discovers Google's OIDC endpoints. It returns domain.ErrLoginUnavailable
// when the client is not configured.
func NewGoogle(ctx context.Context, cfg Config) (Provider, error) {
	if !cfg.Enabled() {
		return nil, domain.ErrLoginUnavailable
	}

	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("discover google oidc: %w", err)
	}

	return &googleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

func (g *googleProvider) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (g *googleProvider) Exchange(ctx context.Context, code string) (*domain.Principal, error) {
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeUnauthorized, "oauth code exchange failed", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, domain.NewError(domain.ErrCodeUnauthorized, "id_token missing from token response")
	}

	idToken, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeUnauthorized, "id_token verification failed", err)
	}

	return principalFromToken(idToken.Subject, idToken.Expiry, idToken.Claims)
}

type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func principalFromToken(subject string, expiry time.Time, decode func(any) error) (*domain.Principal, error) {
	var claims googleClaims
	if err := decode(&claims); err != nil {
		return nil, domain.WrapError(domain.ErrCodeUnauthorized, "id_token claims unreadable", err)
	}
	if claims.Email == "" {
		return nil, domain.WrapError(domain.ErrCodeUnauthorized, "id_token has no email", errors.New("email scope not granted"))
	}

	p := &domain.Principal{
		Email:         claims.Email,
		Name:          claims.Name,
		PictureURL:    claims.Picture,
		SubjectID:     subject,
		EmailVerified: claims.EmailVerified,
	}
	if !expiry.IsZero() {
		p.ExpiresAt = &expiry
	}
	return p, nil
}
