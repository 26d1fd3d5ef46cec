package server

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/guard"
	"github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/permissions"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/rs/zerolog/log"
)

const contentTypeHTML = "text/html; charset=utf-8"

// PageData is handed to every page template.
type PageData struct {
	AppName string
	Title   string
	User    *sessions.User
	Error   string // login page only
	Email   string // preserved on a failed sign in
}

// LoginPageLoader shows the sign in form, with the error of a previous attempt if any.
func (s *Server) LoginPageLoader() guard.Loader {
	return func(c *guard.Context) (guard.Result, error) {
		q := c.Request.URL.Query()
		return guard.Result{Props: PageData{
			AppName: s.config.GetAppName(),
			Title:   "Sign in",
			Error:   q.Get("error"),
			Email:   q.Get("email"),
		}}, nil
	}
}

// DashboardLoader loads the signed-in user from the API.
func (s *Server) DashboardLoader() guard.Loader {
	return s.userPage("Dashboard")
}

// MetricsLoader loads the user for the metrics page. Access is decided by its guard.
func (s *Server) MetricsLoader() guard.Loader {
	return s.userPage("Metrics")
}

func (s *Server) userPage(title string) guard.Loader {
	return func(c *guard.Context) (guard.Result, error) {
		user, err := c.API.Me(c.Context())
		if err != nil {
			return guard.Result{}, fmt.Errorf("[Server %s] %w", title, err)
		}
		return guard.Result{Props: PageData{
			AppName: s.config.GetAppName(),
			Title:   title,
			User:    user,
		}}, nil
	}
}

// LoginSubmissionHandler signs in with the posted form and stores the token pair in cookies.
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		creds := apiclient.Credentials{
			Email:    r.PostFormValue("email"),
			Password: r.PostFormValue("password"),
		}

		c, err := s.contexts(w, r)
		if err != nil {
			log.Err(err).Msg("Building request context failed")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		resp, err := c.API.Login(r.Context(), creds)
		if err != nil {
			msg := "Sign in failed, try again later."
			if statusErr, ok := errors.As[*apiclient.StatusError](err); ok && statusErr.StatusCode == http.StatusUnauthorized {
				msg = "E-mail or password incorrect."
			} else {
				log.Err(err).Str("email", creds.Email).Msg("Sign in failed")
			}
			redirectWithError(w, r, s.config.GetGuestLandingRoute(), msg, creds.Email)
			return
		}

		if err := c.Store.SetToken(r.Context(), sessions.NewToken(resp.Token, resp.RefreshToken)); err != nil {
			log.Err(err).Msg("Persisting session failed")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		log.Info().Str("email", creds.Email).Msg("Signed in")
		http.Redirect(w, r, s.config.GetAuthenticatedLandingRoute(), http.StatusSeeOther)
	}
}

// LogoutHandler drops the session cookies.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := sessions.NewCookieStore(w, r, s.config).Clear(r.Context()); err != nil {
			log.Err(err).Msg("Clearing session failed")
		}
		s.metrics.SignedOut("server")
		http.Redirect(w, r, s.config.GetGuestLandingRoute(), http.StatusSeeOther)
	}
}

// render executes page with the permission functions bound to the viewer.
func (s *Server) render(page string) guard.Renderer {
	return func(w http.ResponseWriter, _ *http.Request, props any) error {
		data, ok := props.(PageData)
		if !ok {
			return fmt.Errorf("[Server render] unexpected props %T for %s", props, page)
		}

		tmpl, err := s.pages[page].Clone()
		if err != nil {
			return fmt.Errorf("[Server render] %w", err)
		}

		var buf bytes.Buffer
		if err := tmpl.Funcs(permissions.TemplateFuncs(data.User)).Execute(&buf, data); err != nil {
			return fmt.Errorf("[Server render] %s: %w", page, err)
		}

		w.Header().Set("Content-Type", contentTypeHTML)
		_, err = buf.WriteTo(w)
		return err
	}
}

func redirectWithError(w http.ResponseWriter, r *http.Request, path, errorMsg, email string) {
	q := url.Values{}
	q.Set("error", errorMsg)
	if email != "" {
		q.Set("email", email)
	}
	http.Redirect(w, r, path+"?"+q.Encode(), http.StatusSeeOther)
}
