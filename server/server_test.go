package server_test

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-client/apiserver"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/jrsteele09/go-auth-client/server"
	"github.com/jrsteele09/go-auth-client/token"
	"github.com/jrsteele09/go-auth-client/token/refresh"
	refreshrepofake "github.com/jrsteele09/go-auth-client/token/refresh/repofake"
	"github.com/jrsteele09/go-auth-client/users"
	fakeuserrepo "github.com/jrsteele09/go-auth-client/users/repofake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type app struct {
	web   *httptest.Server
	clock *clock
}

// newApp runs the reference API and the web app in front of it.
func newApp(t *testing.T) *app {
	t.Helper()
	clk := &clock{now: time.Now()}
	token.NowTimeFunc = clk.Now
	t.Cleanup(func() { token.NowTimeFunc = time.Now })

	cfg := config.New()
	userRepo := fakeuserrepo.NewFakeUserRepo()
	_, err := users.SeedDemoUsers(userRepo)
	require.NoError(t, err)

	api := httptest.NewServer(apiserver.New("TEST", userRepo,
		token.NewCreator(cfg, token.NewHMACSigner("test-secret")),
		refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), cfg.GetRefreshTokenLength(), cfg.GetRefreshTokenExpiry()),
	))
	t.Cleanup(api.Close)
	t.Setenv("API_BASE_URL", api.URL)
	t.Setenv("ENV", "TEST")

	reg := prometheus.NewRegistry()
	srv, err := server.New(config.New(), server.WithMetrics(metrics.New(reg), reg))
	require.NoError(t, err)

	web := httptest.NewServer(srv)
	t.Cleanup(web.Close)
	return &app{web: web, clock: clk}
}

// browser keeps cookies and never follows redirects.
type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

func (a *app) browser(t *testing.T) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{
		t:    t,
		base: a.web.URL,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

type page struct {
	status   int
	location string
	body     string
}

func (b *browser) do(req *http.Request) page {
	b.t.Helper()
	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	return page{status: resp.StatusCode, location: resp.Header.Get("Location"), body: string(body)}
}

func (b *browser) get(path string) page {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.base+path, nil)
	require.NoError(b.t, err)
	return b.do(req)
}

func (b *browser) signIn(email, password string) page {
	b.t.Helper()
	form := url.Values{"email": {email}, "password": {password}}
	req, err := http.NewRequest(http.MethodPost, b.base+server.RouteLogin, strings.NewReader(form.Encode()))
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) cookie(name string) string {
	b.t.Helper()
	u, err := url.Parse(b.base)
	require.NoError(b.t, err)
	for _, c := range b.client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func (b *browser) setCookie(name, value string) {
	b.t.Helper()
	u, err := url.Parse(b.base)
	require.NoError(b.t, err)
	b.client.Jar.SetCookies(u, []*http.Cookie{{Name: name, Value: value, Path: "/"}})
}

func TestServer_Guest(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)

	t.Run("login page renders for guests", func(t *testing.T) {
		p := b.get(server.RouteIndex)
		require.Equal(t, http.StatusOK, p.status)
		require.Contains(t, p.body, "Sign in")
		require.NotContains(t, p.body, "Sign out")
	})

	t.Run("protected pages send guests to the login page", func(t *testing.T) {
		for _, route := range []string{server.RouteDashboard, server.RouteMetrics} {
			p := b.get(route)
			require.Equal(t, http.StatusTemporaryRedirect, p.status, route)
			require.Equal(t, "/", p.location, route)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		p := b.signIn("editor@example.com", "nope")
		require.Equal(t, http.StatusSeeOther, p.status)
		require.Contains(t, p.location, "error=")
		require.Empty(t, b.cookie(config.DefaultTokenCookieName))

		p = b.get(p.location)
		require.Contains(t, p.body, "E-mail or password incorrect.")
		require.Contains(t, p.body, `value="editor@example.com"`)
	})
}

func TestServer_SignedIn(t *testing.T) {
	a := newApp(t)

	t.Run("editor", func(t *testing.T) {
		b := a.browser(t)
		p := b.signIn("editor@example.com", users.DemoPassword)
		require.Equal(t, http.StatusSeeOther, p.status)
		require.Equal(t, server.RouteDashboard, p.location)
		require.NotEmpty(t, b.cookie(config.DefaultTokenCookieName))
		require.NotEmpty(t, b.cookie(config.DefaultRefreshTokenCookieName))

		p = b.get(server.RouteIndex)
		require.Equal(t, http.StatusTemporaryRedirect, p.status)
		require.Equal(t, server.RouteDashboard, p.location)

		p = b.get(server.RouteDashboard)
		require.Equal(t, http.StatusOK, p.status)
		require.Contains(t, p.body, "Signed in as editor@example.com")
		require.Contains(t, p.body, `href="/metrics"`)
		require.Contains(t, p.body, "You can see the metrics.")
		require.NotContains(t, p.body, "You are an administrator.")

		p = b.get(server.RouteMetrics)
		require.Equal(t, http.StatusOK, p.status)
		require.Contains(t, p.body, "Available to editor@example.com.")
	})

	t.Run("viewer lacks the metrics permission", func(t *testing.T) {
		b := a.browser(t)
		b.signIn("viewer@example.com", users.DemoPassword)

		p := b.get(server.RouteDashboard)
		require.Equal(t, http.StatusOK, p.status)
		require.NotContains(t, p.body, `href="/metrics"`)

		p = b.get(server.RouteMetrics)
		require.Equal(t, http.StatusTemporaryRedirect, p.status)
		require.Equal(t, server.RouteDashboard, p.location)
	})

	t.Run("logout", func(t *testing.T) {
		b := a.browser(t)
		b.signIn("admin@example.com", users.DemoPassword)

		p := b.get(server.RouteLogout)
		require.Equal(t, http.StatusSeeOther, p.status)
		require.Equal(t, server.RouteIndex, p.location)
		require.Empty(t, b.cookie(config.DefaultTokenCookieName))

		p = b.get(server.RouteDashboard)
		require.Equal(t, http.StatusTemporaryRedirect, p.status)
	})
}

func TestServer_ExpiredSession(t *testing.T) {
	a := newApp(t)

	t.Run("expired access token is refreshed while rendering", func(t *testing.T) {
		b := a.browser(t)
		b.signIn("admin@example.com", users.DemoPassword)
		before := b.cookie(config.DefaultTokenCookieName)
		beforeRefresh := b.cookie(config.DefaultRefreshTokenCookieName)

		a.clock.Advance(config.Tokens{}.GetAccessTokenExpiry() + time.Minute)

		p := b.get(server.RouteDashboard)
		require.Equal(t, http.StatusOK, p.status)
		require.Contains(t, p.body, "You are an administrator.")
		require.NotEqual(t, before, b.cookie(config.DefaultTokenCookieName))
		require.NotEqual(t, beforeRefresh, b.cookie(config.DefaultRefreshTokenCookieName))
	})

	t.Run("rejected token clears the session", func(t *testing.T) {
		b := a.browser(t)
		b.setCookie(config.DefaultTokenCookieName, "forged")

		p := b.get(server.RouteDashboard)
		require.Equal(t, http.StatusTemporaryRedirect, p.status)
		require.Equal(t, server.RouteIndex, p.location)
		require.Empty(t, b.cookie(config.DefaultTokenCookieName))
	})
}

func TestServer_Prometheus(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)
	b.get(server.RouteDashboard)

	p := b.get(server.RoutePrometheus)
	require.Equal(t, http.StatusOK, p.status)
	require.Contains(t, p.body, "auth_guard_decisions_total")
	require.Contains(t, p.body, "http_requests_total")
}

func TestServer_Static(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)

	require.Equal(t, http.StatusOK, b.get(server.RouteStatic+"app.css").status)
	require.Equal(t, http.StatusNotFound, b.get(server.RouteStatic+"missing.css").status)
}
