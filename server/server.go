// Package server is the server-rendered web app. Its pages are guarded by the session held in
// the request's cookies and load their data through the API in server mode.
package server

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/guard"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/jrsteele09/go-auth-client/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

type Server struct {
	env      string
	config   config.Config
	router   *middleware.Router
	handler  http.Handler
	guards   *guard.Guards
	contexts guard.ContextFactory
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	apiOpts  []apiclient.Option
	pages    map[string]*template.Template
}

type Option func(*Server)

// WithMetrics instruments the app and exposes g on /prometheus.
func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// WithClientOptions passes options to the API client built for every request.
func WithClientOptions(opts ...apiclient.Option) Option {
	return func(s *Server) { s.apiOpts = append(s.apiOpts, opts...) }
}

func New(cfg config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		env:    cfg.GetEnv(),
		config: cfg,
		router: middleware.NewRouter(),
		pages:  make(map[string]*template.Template),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.guards = guard.New(guard.WithRoutes(cfg), guard.WithMetrics(s.metrics))
	s.apiOpts = append([]apiclient.Option{
		apiclient.WithHTTPClient(&http.Client{Timeout: cfg.GetHTTPTimeout()}),
		apiclient.WithRefreshTimeout(cfg.GetRefreshTimeout()),
		apiclient.WithMetrics(s.metrics),
	}, s.apiOpts...)
	s.contexts = guard.NewContextFactory(cfg.GetAPIBaseURL(), cfg, s.apiOpts...)

	for _, page := range []string{pageLogin, pageDashboard, pageMetrics} {
		tmpl, err := ParseTemplate(page)
		if err != nil {
			return nil, fmt.Errorf("[Server New] failed to parse %s: %w", page, err)
		}
		s.pages[page] = tmpl
	}

	s.initRoutes()
	s.router.LogRoutes(s.env)
	s.handler = s.metrics.Instrument(s.router)
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Routes lists the registered route patterns.
func (s *Server) Routes() []string {
	return s.router.Routes()
}
