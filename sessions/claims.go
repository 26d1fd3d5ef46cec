package sessions

import (
	"fmt"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/utils"
)

// DecodeClaims reads the user's email, permissions and roles out of an access token.
//
// The signature is NOT verified. The result is only fit for routing and UI decisions;
// the API must still authorize every protected call itself.
func DecodeClaims(accessToken string) (*User, error) {
	if accessToken == "" {
		return nil, errors.ErrNoSession
	}

	claims := jwtlib.MapClaims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return nil, fmt.Errorf("[sessions DecodeClaims] %w: %w", errors.ErrInvalidToken, err)
	}

	user := &User{
		Permissions: utils.ClaimStrings(claims["permissions"]),
		Roles:       utils.ClaimStrings(claims["roles"]),
	}
	if email, ok := claims["email"].(string); ok {
		user.Email = email
	} else if sub, err := claims.GetSubject(); err == nil {
		user.Email = sub
	}
	return user, nil
}
