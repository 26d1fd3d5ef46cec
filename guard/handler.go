package guard

import (
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/rs/zerolog/log"
)

// ContextFactory builds the Context of one request.
type ContextFactory func(w http.ResponseWriter, r *http.Request) (*Context, error)

// Renderer writes the page for the props returned by a loader.
type Renderer func(w http.ResponseWriter, r *http.Request, props any) error

// NewContextFactory returns a factory whose contexts persist the session in the request's
// cookies and call the API at baseURL in server mode. Nothing is shared between requests.
func NewContextFactory(baseURL string, cookies config.CookieConfig, opts ...apiclient.Option) ContextFactory {
	return func(w http.ResponseWriter, r *http.Request) (*Context, error) {
		store := sessions.NewCookieStore(w, r, cookies)
		clientOpts := append(append([]apiclient.Option{}, opts...), apiclient.WithMode(apiclient.ModeServer))
		api, err := apiclient.New(r.Context(), baseURL, store, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("[guard NewContextFactory] %w", err)
		}
		return &Context{Request: r, Writer: w, Store: store, API: api}, nil
	}
}

// Handler runs loader for every request and either redirects (307, or 308 when permanent)
// or renders the props. Loader errors become a 500.
func Handler(factory ContextFactory, loader Loader, render Renderer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := factory(w, r)
		if err != nil {
			log.Err(err).Str("path", r.URL.Path).Msg("Building request context failed")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		result, err := loader(c)
		if err != nil {
			log.Err(err).Str("path", r.URL.Path).Msg("Loading page failed")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		if result.Redirect != nil {
			status := http.StatusTemporaryRedirect
			if result.Redirect.Permanent {
				status = http.StatusPermanentRedirect
			}
			http.Redirect(w, r, result.Redirect.Destination, status)
			return
		}

		if err := render(w, r, result.Props); err != nil {
			log.Err(err).Str("path", r.URL.Path).Msg("Rendering page failed")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	})
}
