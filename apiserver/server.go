// Package apiserver is a reference backend for the client: it signs users in, rotates refresh
// tokens and answers 401 with the token.expired code once an access token has expired.
package apiserver

import (
	"net/http"

	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/jrsteele09/go-auth-client/internal/middleware"
	"github.com/jrsteele09/go-auth-client/token"
	"github.com/jrsteele09/go-auth-client/token/refresh"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	RouteSessions = "/sessions"
	RouteRefresh  = "/refresh"
	RouteMe       = "/me"
	RouteMetrics  = "/metrics"
)

type Server struct {
	env      string
	router   *middleware.Router
	users    users.UserRepo
	tokens   *token.Creator
	refresh  *refresh.Manager
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
}

type Option func(*Server)

// WithMetrics instruments every route and exposes g on /metrics.
func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

func New(env string, userRepo users.UserRepo, tokens *token.Creator, refreshTokens *refresh.Manager, opts ...Option) *Server {
	s := &Server{
		env:     env,
		router:  middleware.NewRouter(),
		users:   userRepo,
		tokens:  tokens,
		refresh: refreshTokens,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.initRoutes()
	s.router.LogRoutes(env)
	s.handler = s.metrics.Instrument(s.router)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) initRoutes() {
	s.router.HandleFunc("POST "+RouteSessions, middleware.ChainMiddleware(s.CreateSession(), s.middleware()...))
	s.router.HandleFunc("POST "+RouteRefresh, middleware.ChainMiddleware(s.Refresh(), s.middleware()...))
	s.router.HandleFunc("GET "+RouteMe, middleware.ChainMiddleware(s.Me(), s.middleware(s.RequireAuth)...))
	if s.gatherer != nil {
		s.router.Handle("GET "+RouteMetrics, metrics.Handler(s.gatherer))
	}
}

func (s *Server) middleware(mw ...middleware.Middleware) []middleware.Middleware {
	return append([]middleware.Middleware{
		middleware.Logging(s.env),
		middleware.Recover,
	}, mw...)
}
