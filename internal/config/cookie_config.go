package config

import "time"

const (
	DefaultTokenCookieName        = "nextauth.token"
	DefaultRefreshTokenCookieName = "nextauth.refreshToken"
	DefaultCookieMaxAge           = 30 * 24 * time.Hour
)

type Cookies struct{}

var _ CookieConfig = Cookies{}

func (Cookies) GetTokenCookieName() string {
	return GetEnv("TOKEN_COOKIE", DefaultTokenCookieName)
}

func (Cookies) GetRefreshTokenCookieName() string {
	return GetEnv("REFRESH_TOKEN_COOKIE", DefaultRefreshTokenCookieName)
}

func (Cookies) GetCookieMaxAge() time.Duration {
	return DefaultCookieMaxAge // 1 month
}

func (Cookies) GetCookiePath() string {
	return "/" // Whole application
}

func (Cookies) GetCookieSecure() bool {
	return GetEnvBool("COOKIE_SECURE", false)
}
