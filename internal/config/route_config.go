package config

const (
	DefaultGuestLandingRoute         = "/"
	DefaultAuthenticatedLandingRoute = "/dashboard"
)

type Routes struct{}

var _ RouteConfig = Routes{}

// GetGuestLandingRoute is where unauthenticated users are sent.
func (Routes) GetGuestLandingRoute() string {
	return DefaultGuestLandingRoute
}

// GetAuthenticatedLandingRoute is where authenticated users without access are sent, never the login page.
func (Routes) GetAuthenticatedLandingRoute() string {
	return DefaultAuthenticatedLandingRoute
}
