package sessions

import (
	"context"
	"time"

	"github.com/jrsteele09/go-auth-client/internal/errors"
	"golang.org/x/oauth2"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Store persists the session's two credentials (access token and refresh token)
// in a durable, context-scoped key-value store with a fixed expiry.
type Store interface {
	// Token returns the persisted pair, or errors.ErrNoSession when no access token is stored
	Token(ctx context.Context) (*oauth2.Token, error)

	// SetToken persists both credentials
	SetToken(ctx context.Context, tok *oauth2.Token) error

	// Clear removes both credentials
	Clear(ctx context.Context) error
}

// AccessToken returns the persisted access token or "" when there is none.
func AccessToken(ctx context.Context, s Store) string {
	tok, err := s.Token(ctx)
	if err != nil || tok == nil {
		return ""
	}
	return tok.AccessToken
}

// HasSession reports whether s holds an access token.
func HasSession(ctx context.Context, s Store) bool {
	return AccessToken(ctx, s) != ""
}

func noSession(tok *oauth2.Token) (*oauth2.Token, error) {
	if tok == nil || tok.AccessToken == "" {
		return nil, errors.ErrNoSession
	}
	return tok, nil
}
