package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	portEnvVar       = "PORT"
	apiPortEnvVar    = "API_PORT"
	appNameVar       = "APP_NAME"
	apiBaseURLEnvVar = "API_BASE_URL"
	redisAddrEnvVar  = "REDIS_ADDR"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	return asListenAddr(GetEnv(portEnvVar, "8080"))
}

func (EnvVars) GetAPIPort() string {
	return asListenAddr(GetEnv(apiPortEnvVar, "3333"))
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Go Auth Client")
}

// GetAPIBaseURL returns the base URL of the backend API every outbound call is sent to
// (e.g., "http://localhost:3333").
func (EnvVars) GetAPIBaseURL() string {
	return GetEnv(apiBaseURLEnvVar, "http://localhost:3333")
}

// GetRedisAddr returns the Redis address used for cross-process session broadcast.
// Empty means the in-process hub is used.
func (EnvVars) GetRedisAddr() string {
	return GetEnv(redisAddrEnvVar, "")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func asListenAddr(port string) string {
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetEnvDuration parses a Go duration ("30s", "5m") from the environment.
// Unparseable values fall back to the default.
func GetEnvDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func GetEnvBool(envVar string, defaultValue bool) bool {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// GetEnvList splits a comma separated variable, dropping empty items.
func GetEnvList(envVar string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(envVar), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
