package server

import (
	"github.com/jrsteele09/go-auth-client/guard"
	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/jrsteele09/go-auth-client/internal/middleware"
	"github.com/jrsteele09/go-auth-client/permissions"
)

func (s *Server) initRoutes() {
	metricsRequirement := &permissions.Requirement{
		Permissions: []string{PermissionMetricsList},
		Roles:       MetricsRoles,
	}

	s.page("GET "+RouteIndex+"{$}", s.guards.GuestGuard(s.LoginPageLoader()), pageLogin)
	s.page("GET "+RouteDashboard, s.guards.AuthGuard(s.DashboardLoader(), nil), pageDashboard)
	s.page("GET "+RouteMetrics, s.guards.AuthGuard(s.MetricsLoader(), metricsRequirement), pageMetrics)

	s.router.HandleFunc("POST "+RouteLogin, middleware.ChainMiddleware(s.LoginSubmissionHandler(), s.HTMLMiddleWare()...))
	s.router.HandleFunc("GET "+RouteLogout, middleware.ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))
	s.router.Handle("GET "+RouteStatic, StaticHandler(RouteStatic))

	if s.gatherer != nil {
		s.router.Handle("GET "+RoutePrometheus, metrics.Handler(s.gatherer))
	}
}

func (s *Server) page(pattern string, loader guard.Loader, page string) {
	h := guard.Handler(s.contexts, loader, s.render(page))
	s.router.HandleFunc(pattern, middleware.ChainMiddleware(h.ServeHTTP, s.HTMLMiddleWare()...))
}

func (s *Server) HTMLMiddleWare(mw ...middleware.Middleware) []middleware.Middleware {
	return append([]middleware.Middleware{
		middleware.Logging(s.env),
		middleware.Recover,
		middleware.FrameSecurity,
	}, mw...)
}
