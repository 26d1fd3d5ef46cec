package config

import "time"

const DefaultBroadcastChannelName = "auth"

type Client struct{}

var _ ClientConfig = Client{}

func (Client) GetHTTPTimeout() time.Duration {
	return GetEnvDuration("HTTP_TIMEOUT", 30*time.Second)
}

// GetRefreshTimeout bounds a single refresh call. Zero means the call is not bounded.
func (Client) GetRefreshTimeout() time.Duration {
	return GetEnvDuration("REFRESH_TIMEOUT", 0)
}

func (Client) GetBroadcastChannelName() string {
	return DefaultBroadcastChannelName
}
