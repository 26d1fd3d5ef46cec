// Package guard wraps the data loaders of server-rendered pages with session and permission checks.
//
// Claims are read from the access token without verifying its signature. The checks here only
// decide where a browser is sent; every protected API call is still authorized by the API itself.
package guard

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/jrsteele09/go-auth-client/permissions"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	authGuardName  = "auth"
	guestGuardName = "guest"

	decisionAllowed      = "allowed"
	decisionNoSession    = "no_session"
	decisionForbidden    = "forbidden"
	decisionHasSession   = "has_session"
	decisionAuthRequired = "authentication_required"
)

// Redirect sends the browser elsewhere instead of rendering the page.
type Redirect struct {
	Destination string
	Permanent   bool
}

// Result is what a loader hands to the page: either props to render or a redirect.
type Result struct {
	Props    any
	Redirect *Redirect
}

// RedirectTo is a Result that only redirects.
func RedirectTo(destination string, permanent bool) Result {
	return Result{Redirect: &Redirect{Destination: destination, Permanent: permanent}}
}

// Context is built for every server-rendered request. Its store reads the request's cookies
// and its API client runs in server mode.
type Context struct {
	Request *http.Request
	Writer  http.ResponseWriter
	Store   sessions.Store
	API     *apiclient.Client
}

func (c *Context) Context() context.Context {
	return c.Request.Context()
}

// Loader loads the data of a server-rendered page.
type Loader func(*Context) (Result, error)

// Guards holds the routes and instrumentation shared by AuthGuard and GuestGuard.
type Guards struct {
	routes  config.RouteConfig
	log     zerolog.Logger
	metrics *metrics.Metrics
}

type Option func(*Guards)

func WithRoutes(routes config.RouteConfig) Option {
	return func(g *Guards) { g.routes = routes }
}

func WithLogger(l zerolog.Logger) Option {
	return func(g *Guards) { g.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guards) { g.metrics = m }
}

func New(opts ...Option) *Guards {
	g := &Guards{
		routes: config.Routes{},
		log:    log.Logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var defaultGuards = New()

// AuthGuard guards fn with the default routes.
func AuthGuard(fn Loader, req *permissions.Requirement) Loader {
	return defaultGuards.AuthGuard(fn, req)
}

// GuestGuard guards fn with the default routes.
func GuestGuard(fn Loader) Loader {
	return defaultGuards.GuestGuard(fn)
}

// AuthGuard only runs fn for requests carrying an access token.
//
// Requests without a token go to the guest landing route. When req is given and the token's
// claims do not satisfy it, the request goes to the authenticated landing route, never to login.
// If fn fails with ErrAuthenticationRequired the persisted session is cleared and the request
// goes to the guest landing route. Any other error from fn is returned as is.
func (g *Guards) AuthGuard(fn Loader, req *permissions.Requirement) Loader {
	return func(c *Context) (Result, error) {
		ctx := c.Context()
		accessToken := sessions.AccessToken(ctx, c.Store)
		if accessToken == "" {
			return g.redirect(c, authGuardName, decisionNoSession, g.routes.GetGuestLandingRoute()), nil
		}

		if req != nil {
			user, err := sessions.DecodeClaims(accessToken)
			if err != nil {
				g.log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("Undecodable access token")
			}
			if !permissions.Evaluate(user, *req) {
				return g.redirect(c, authGuardName, decisionForbidden, g.routes.GetAuthenticatedLandingRoute()), nil
			}
		}

		result, err := fn(c)
		if errors.Is(err, errors.ErrAuthenticationRequired) {
			if clearErr := c.Store.Clear(ctx); clearErr != nil {
				g.log.Err(clearErr).Msg("Clearing session after rejected request failed")
			}
			return g.redirect(c, authGuardName, decisionAuthRequired, g.routes.GetGuestLandingRoute()), nil
		}
		if err == nil {
			g.metrics.GuardDecision(authGuardName, decisionAllowed)
		}
		return result, err
	}
}

// GuestGuard only runs fn for requests without an access token. Others go to the authenticated landing route.
func (g *Guards) GuestGuard(fn Loader) Loader {
	return func(c *Context) (Result, error) {
		if sessions.HasSession(c.Context(), c.Store) {
			return g.redirect(c, guestGuardName, decisionHasSession, g.routes.GetAuthenticatedLandingRoute()), nil
		}
		g.metrics.GuardDecision(guestGuardName, decisionAllowed)
		return fn(c)
	}
}

func (g *Guards) redirect(c *Context, guard, decision, destination string) Result {
	g.metrics.GuardDecision(guard, decision)
	g.log.Debug().
		Str("guard", guard).
		Str("decision", decision).
		Str("path", c.Request.URL.Path).
		Str("destination", destination).
		Msg("Guard redirect")
	return RedirectTo(destination, false)
}
