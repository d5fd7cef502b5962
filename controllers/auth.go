package controllers

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"

	"gitea.com/go-chi/session"

	"github.com/blogem/hard-delete-gate/authenticator"
	"github.com/blogem/hard-delete-gate/models"
	"github.com/blogem/hard-delete-gate/respond"
)

const sessionStateKey = "oidc_state"

// AuthController runs the OpenID Connect login that yields a bearer ID token
type AuthController struct {
	provider authenticator.Provider
}

// NewAuthController creates a new auth controller
func NewAuthController(provider authenticator.Provider) *AuthController {
	return &AuthController{provider: provider}
}

// Login handles GET /auth/login
func (ac *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	// Generate random state
	state, err := generateRandomState()
	if err != nil {
		respond.ErrorWithCode(w, models.ErrCodeInternal, "Failed to start login", nil, err)
		return
	}

	// Save the state in the session to validate in callback
	sess := session.GetSession(r)
	if err := sess.Set(sessionStateKey, state); err != nil {
		respond.ErrorWithCode(w, models.ErrCodeInternal, "Failed to start login", nil, err)
		return
	}

	http.Redirect(w, r, ac.provider.GetAuthURL(state), http.StatusTemporaryRedirect)
}

// Callback handles GET /auth/callback and returns the ID token to use as bearer credential
func (ac *AuthController) Callback(w http.ResponseWriter, r *http.Request) {
	sess := session.GetSession(r)

	// Verify state
	storedState, _ := sess.Get(sessionStateKey).(string)
	if storedState == "" {
		respond.ErrorWithCode(w, models.ErrCodeUnauthorized, "Login state not found in session", nil, nil)
		return
	}
	if r.URL.Query().Get("state") != storedState {
		respond.ErrorWithCode(w, models.ErrCodeUnauthorized, "Invalid state parameter", nil, nil)
		return
	}
	_ = sess.Delete(sessionStateKey)

	// Exchange the code for a token
	token, err := ac.provider.ExchangeCode(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		respond.ErrorWithCode(w, models.ErrCodeUnauthorized, "Failed to exchange authorization code", nil, err)
		return
	}

	claims, err := ac.provider.GetClaims(r.Context(), token)
	if err != nil {
		respond.ErrorWithCode(w, models.ErrCodeUnauthorized, "Failed to verify ID token", nil, err)
		return
	}

	identity, err := claims.Identity("")
	if err != nil {
		respond.ErrorWithCode(w, models.ErrCodeUnauthorized, "ID token lacks subject or email", nil, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"token_type": "Bearer",
		"id_token":   token.IDToken,
		"expiry":     token.Expiry,
		"user":       identity,
	})
}

// generateRandomState generates a random state value for CSRF protection
func generateRandomState() (string, error) {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
