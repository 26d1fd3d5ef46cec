package token

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Signer signs access tokens and hands out the key that verifies them.
type Signer interface {
	Sign(claims jwt.MapClaims) (string, error)

	// GetVerificationKey is a jwt.Keyfunc.
	GetVerificationKey(token *jwt.Token) (any, error)

	GetSigningMethod() jwt.SigningMethod
}

// HMACSigner signs with HS256 under the current secret and still verifies tokens
// signed with retired ones. Every token names its secret in the kid header.
type HMACSigner struct {
	kid  string
	keys map[string][]byte
}

func NewHMACSigner(secret string, retired ...string) *HMACSigner {
	s := &HMACSigner{
		kid:  keyID(secret),
		keys: make(map[string][]byte, len(retired)+1),
	}
	for _, r := range retired {
		s.keys[keyID(r)] = []byte(r)
	}
	s.keys[s.kid] = []byte(secret)
	return s
}

func keyID(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:4])
}

func (s *HMACSigner) Sign(claims jwt.MapClaims) (string, error) {
	t := jwt.NewWithClaims(s.GetSigningMethod(), claims)
	t.Header["kid"] = s.kid
	signed, err := t.SignedString(s.keys[s.kid])
	if err != nil {
		return "", fmt.Errorf("[HMACSigner Sign] %w", err)
	}
	return signed, nil
}

func (s *HMACSigner) GetVerificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		kid = s.kid
	}
	key, ok := s.keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown key id %q", kid)
	}
	return key, nil
}

func (s *HMACSigner) GetSigningMethod() jwt.SigningMethod {
	return jwt.SigningMethodHS256
}
