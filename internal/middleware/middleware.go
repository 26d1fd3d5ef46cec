// Package middleware holds the HTTP plumbing shared by the web app and the reference API.
package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type Middleware func(http.HandlerFunc) http.HandlerFunc

// ChainMiddleware wraps routeFunction so that mw[0] runs first.
func ChainMiddleware(routeFunction http.HandlerFunc, mw ...Middleware) http.HandlerFunc {
	chainedHandler := routeFunction
	for i := len(mw) - 1; i >= 0; i-- {
		chainedHandler = mw[i](chainedHandler)
	}
	return chainedHandler
}

// Logging logs every request. Outside DEV it stays quiet below warnings.
func Logging(env string) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next(sw, r)

			event := log.Debug()
			if env == "DEV" {
				event = log.Info()
			}
			if sw.status >= http.StatusInternalServerError {
				event = log.Warn()
			}
			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sw.status).
				Dur("duration", time.Since(start)).
				Msgf("[%s] %s%d%s", colouredMethod(r.Method), statusColor(sw.status), sw.status, ResetColor)
		}
	}
}

// Recover turns a panicking handler into a 500.
func Recover(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Bytes("stack", debug.Stack()).
					Msgf("Recovered from panic: %v", rec)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next(w, r)
	}
}

// FrameSecurity prevents embedding on other sites.
func FrameSecurity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'self'")
		next(w, r)
	}
}

// Router is a ServeMux that remembers its patterns so they can be listed at startup.
type Router struct {
	mux    *http.ServeMux
	routes []string
}

func NewRouter() *Router {
	return &Router{mux: http.NewServeMux()}
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}

func (rt *Router) Handle(pattern string, handler http.Handler) {
	rt.routes = append(rt.routes, pattern)
	rt.mux.Handle(pattern, handler)
}

func (rt *Router) HandleFunc(pattern string, handler http.HandlerFunc) {
	rt.Handle(pattern, handler)
}

// Routes returns the registered patterns in registration order.
func (rt *Router) Routes() []string {
	return append([]string(nil), rt.routes...)
}

// LogRoutes lists the registered routes, in DEV only.
func (rt *Router) LogRoutes(env string) {
	if env != "DEV" {
		return
	}
	for _, route := range rt.routes {
		method, path := "", route
		if parts := strings.SplitN(route, " ", 2); len(parts) > 1 {
			method, path = parts[0], parts[1]
		}
		log.Info().Msgf("[%s %-7s%s] %s", methodColor(method), method, ResetColor, path)
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
