package config

import "time"

// TokenConfig is used by the reference API server only.
type TokenConfig interface {
	GetJWTSecret() string
	GetRetiredJWTSecrets() []string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenLength() int
	GetRefreshTokenExpiry() time.Duration
}

type Tokens struct{}

var _ TokenConfig = Tokens{}

func (Tokens) GetJWTSecret() string {
	return GetEnv("JWT_SECRET", "dev-secret-change-me")
}

// GetRetiredJWTSecrets lists former secrets whose tokens are still accepted after a rotation.
func (Tokens) GetRetiredJWTSecrets() []string {
	return GetEnvList("JWT_RETIRED_SECRETS")
}

func (Tokens) GetAccessTokenExpiry() time.Duration {
	return GetEnvDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute)
}

func (Tokens) GetRefreshTokenLength() int {
	return 32 // 32 bytes = 256 bits
}

// GetRefreshTokenExpiry matches the lifetime of the session cookies by default.
func (Tokens) GetRefreshTokenExpiry() time.Duration {
	return GetEnvDuration("REFRESH_TOKEN_EXPIRY", DefaultCookieMaxAge)
}
