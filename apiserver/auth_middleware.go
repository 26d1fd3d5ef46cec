package apiserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/token"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyClaims stores the verified access token claims
const ContextKeyClaims ContextKey = "claims"

const codeTokenInvalid = "token.invalid"

// RequireAuth validates the Bearer access token. An expired token is answered with the
// token.expired code so clients know to refresh; every other failure is token.invalid.
func (s *Server) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scheme, raw, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || raw == "" {
			writeError(w, http.StatusUnauthorized, codeTokenInvalid, "Token not present.")
			return
		}

		claims, err := s.tokens.Validate(raw)
		if errors.Is(err, errors.ErrTokenExpired) {
			writeError(w, http.StatusUnauthorized, apiclient.CodeTokenExpired, "Token expired.")
			return
		}
		if err != nil {
			writeError(w, http.StatusUnauthorized, codeTokenInvalid, "Invalid token.")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), ContextKeyClaims, claims)))
	}
}

func claimsFrom(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(ContextKeyClaims).(*token.Claims)
	return claims, ok
}
