package authenticator

import (
	"context"
	"errors"
	"strings"

	"github.com/blogem/hard-delete-gate/models"
)

// ErrInvalidCredential is returned when a bearer credential cannot be accepted
var ErrInvalidCredential = errors.New("invalid credential")

// Token represents an authentication token
type Token struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token"`
	Expiry       int64  `json:"expiry"`
}

// Claims represents user claims from the ID token
type Claims map[string]interface{}

// Identity maps sub, email and the given role claim onto an Identity.
// A credential without a subject or email cannot take part in dual approval.
func (c Claims) Identity(roleClaim string) (*models.Identity, error) {
	sub, _ := c["sub"].(string)
	email, _ := c["email"].(string)
	if strings.TrimSpace(sub) == "" {
		return nil, errors.Join(ErrInvalidCredential, errors.New("missing subject"))
	}
	if strings.TrimSpace(email) == "" {
		return nil, errors.Join(ErrInvalidCredential, errors.New("missing email"))
	}

	if roleClaim == "" {
		roleClaim = "role"
	}
	role, _ := c[roleClaim].(string)

	return &models.Identity{ID: sub, Email: email, Role: role}, nil
}

// Provider interface abstracts OAuth provider operations
type Provider interface {
	GetAuthURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*Token, error)
	GetClaims(ctx context.Context, token *Token) (Claims, error)
}

// Verifier turns a raw bearer credential into the acting identity
type Verifier interface {
	Verify(ctx context.Context, raw string) (*models.Identity, error)
}

// Chain tries each verifier in turn and returns the first identity accepted
type Chain []Verifier

// Verify implements Verifier
func (c Chain) Verify(ctx context.Context, raw string) (*models.Identity, error) {
	if len(c) == 0 {
		return nil, ErrInvalidCredential
	}

	errs := make([]error, 0, len(c))
	for _, v := range c {
		identity, err := v.Verify(ctx, raw)
		if err == nil {
			return identity, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}
