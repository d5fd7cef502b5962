package authenticator

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/blogem/hard-delete-gate/models"
)

// OpenIDProvider runs the OpenID Connect login flow and verifies the
// resulting ID tokens when they come back as bearer credentials
type OpenIDProvider struct {
	provider  *oidc.Provider
	verifier  *oidc.IDTokenVerifier
	config    oauth2.Config
	roleClaim string
}

// OpenIDConfig holds OpenID Connect configuration
type OpenIDConfig struct {
	Domain       string
	ClientID     string
	ClientSecret string
	CallbackURL  string
	RoleClaim    string
}

// NewOpenIDProvider discovers the issuer and creates a provider
func NewOpenIDProvider(ctx context.Context, cfg OpenIDConfig) (*OpenIDProvider, error) {
	// Validate required configuration
	if cfg.Domain == "" {
		return nil, errors.New("domain is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if cfg.CallbackURL == "" {
		return nil, errors.New("callback URL is required")
	}

	provider, err := oidc.NewProvider(ctx, "https://"+cfg.Domain+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	conf := oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.CallbackURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}

	return &OpenIDProvider{
		provider:  provider,
		verifier:  provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		config:    conf,
		roleClaim: cfg.RoleClaim,
	}, nil
}

// GetAuthURL returns the authorization URL for OpenID Connect
func (p *OpenIDProvider) GetAuthURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// ExchangeCode exchanges an authorization code for tokens
func (p *OpenIDProvider) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	oauth2Token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	token := &Token{
		AccessToken:  oauth2Token.AccessToken,
		RefreshToken: oauth2Token.RefreshToken,
		Expiry:       oauth2Token.Expiry.Unix(),
	}

	// Extract ID token if present
	if idToken, ok := oauth2Token.Extra("id_token").(string); ok {
		token.IDToken = idToken
	}

	return token, nil
}

// GetClaims extracts user claims from the ID token
func (p *OpenIDProvider) GetClaims(ctx context.Context, token *Token) (Claims, error) {
	if token.IDToken == "" {
		return nil, errors.New("no id_token in token")
	}
	return p.claims(ctx, token.IDToken)
}

// Verify implements Verifier for ID tokens presented as bearer credentials
func (p *OpenIDProvider) Verify(ctx context.Context, raw string) (*models.Identity, error) {
	claims, err := p.claims(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}
	return claims.Identity(p.roleClaim)
}

func (p *OpenIDProvider) claims(ctx context.Context, raw string) (Claims, error) {
	idToken, err := p.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}

	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return nil, err
	}

	return claims, nil
}
