package middleware

import (
	"net/http"
	"strings"

	"github.com/blogem/hard-delete-gate/authenticator"
	"github.com/blogem/hard-delete-gate/models"
	"github.com/blogem/hard-delete-gate/respond"
	"github.com/blogem/hard-delete-gate/userctx"
)

// RequireBearer ensures the request carries a valid bearer credential for one of adminRoles.
// The verified identity is added to the request context.
func RequireBearer(verifier authenticator.Verifier, adminRoles []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(adminRoles))
	for _, role := range adminRoles {
		allowed[strings.TrimSpace(role)] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				respond.ErrorWithCode(w, models.ErrCodeUnauthorized, "Missing bearer token", nil, nil)
				return
			}

			identity, err := verifier.Verify(r.Context(), raw)
			if err != nil {
				respond.ErrorWithCode(w, models.ErrCodeUnauthorized, "Invalid bearer token", nil, err)
				return
			}

			if !allowed[identity.Role] {
				respond.ErrorWithCode(w, models.ErrCodeForbidden, "Insufficient permissions", nil, nil)
				return
			}

			ctx := userctx.SetIdentity(r.Context(), *identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
