// Package token issues and checks the access tokens of the reference API.
package token

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/users"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Claims are the parts of a verified access token the API acts on.
type Claims struct {
	Subject     string
	Email       string
	Permissions []string
	Roles       []string
	ExpiresAt   time.Time
}

// Creator handles access token creation and validation
type Creator struct {
	config config.TokenConfig
	signer Signer
}

func NewCreator(cfg config.TokenConfig, signer Signer) *Creator {
	return &Creator{
		config: cfg,
		signer: signer,
	}
}

// CreateAccessToken issues a short lived access token carrying the user's permissions and roles.
func (c *Creator) CreateAccessToken(user *users.User) (string, error) {
	now := NowTimeFunc()
	claims := jwtlib.MapClaims{
		"sub":         user.ID,
		"email":       user.Email,
		"permissions": user.Permissions,
		"roles":       user.Roles,
		"iat":         now.Unix(),
		"exp":         now.Add(c.config.GetAccessTokenExpiry()).Unix(),
		"jti":         uuid.New().String(),
	}

	signed, err := c.signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("[Creator CreateAccessToken] %w", err)
	}
	return signed, nil
}

// Validate verifies the signature and expiry of rawToken.
// Expired tokens yield ErrTokenExpired; anything else unacceptable yields ErrInvalidToken.
func (c *Creator) Validate(rawToken string) (*Claims, error) {
	parsed, err := jwtlib.Parse(rawToken, c.signer.GetVerificationKey,
		jwtlib.WithValidMethods([]string{c.signer.GetSigningMethod().Alg()}),
		jwtlib.WithTimeFunc(NowTimeFunc),
		jwtlib.WithExpirationRequired(),
	)
	if errors.Is(err, jwtlib.ErrTokenExpired) {
		return nil, errors.ErrTokenExpired
	}
	if err != nil || !parsed.Valid {
		return nil, errors.Wrapf(errors.ErrInvalidToken, "[Creator Validate] %v", err)
	}

	mapClaims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.ErrInvalidToken
	}

	claims := &Claims{}
	claims.Subject, _ = mapClaims.GetSubject()
	claims.Email, _ = mapClaims["email"].(string)
	claims.Permissions = utils.ClaimStrings(mapClaims["permissions"])
	claims.Roles = utils.ClaimStrings(mapClaims["roles"])
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	return claims, nil
}
