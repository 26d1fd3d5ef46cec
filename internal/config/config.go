package config

import "time"

type Config interface {
	EnvConfig
	CookieConfig
	RouteConfig
	ClientConfig
	TokenConfig
}

type EnvConfig interface {
	GetPort() string
	GetAPIPort() string
	GetAppName() string
	GetAPIBaseURL() string
	GetRedisAddr() string
	GetEnv() string
}

// CookieConfig describes where the session credentials are persisted.
type CookieConfig interface {
	GetTokenCookieName() string
	GetRefreshTokenCookieName() string
	GetCookieMaxAge() time.Duration
	GetCookiePath() string
	GetCookieSecure() bool
}

type RouteConfig interface {
	GetGuestLandingRoute() string
	GetAuthenticatedLandingRoute() string
}

type ClientConfig interface {
	GetHTTPTimeout() time.Duration
	GetRefreshTimeout() time.Duration
	GetBroadcastChannelName() string
}

type mainConfig struct {
	EnvVars
	Cookies
	Routes
	Client
	Tokens
}

func New() Config {
	return mainConfig{}
}
