package guard_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/guard"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/jrsteele09/go-auth-client/permissions"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, permissions, roles []string) string {
	t.Helper()
	tok, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"email":       "diego@example.com",
		"permissions": permissions,
		"roles":       roles,
		"exp":         time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("not-the-api-secret"))
	require.NoError(t, err)
	return tok
}

func newContext(t *testing.T, accessToken string) *guard.Context {
	t.Helper()
	store := sessions.NewMemoryStore(config.DefaultTokenCookieName, config.DefaultRefreshTokenCookieName, config.DefaultCookieMaxAge)
	if accessToken != "" {
		require.NoError(t, store.SetToken(context.Background(), sessions.NewToken(accessToken, "refresh")))
	}
	return &guard.Context{
		Request: httptest.NewRequest(http.MethodGet, "/metrics", nil),
		Writer:  httptest.NewRecorder(),
		Store:   store,
	}
}

type props struct{ Title string }

func loaderReturning(result guard.Result, err error, called *bool) guard.Loader {
	return func(*guard.Context) (guard.Result, error) {
		*called = true
		return result, err
	}
}

func TestAuthGuard(t *testing.T) {
	metricsRequirement := &permissions.Requirement{
		Permissions: []string{"metrics.list"},
		Roles:       []string{"administrator", "editor"},
	}
	loaded := guard.Result{Props: props{Title: "Metrics"}}
	errBoom := fmt.Errorf("boom")

	tests := []struct {
		name         string
		token        func(t *testing.T) string
		requirement  *permissions.Requirement
		loaderErr    error
		wantRedirect string
		wantCalled   bool
		wantErr      error
		wantCleared  bool
	}{
		{
			name:         "no token",
			token:        func(*testing.T) string { return "" },
			requirement:  metricsRequirement,
			wantRedirect: "/",
		},
		{
			name: "missing permission",
			token: func(t *testing.T) string {
				return signedToken(t, []string{"users.list"}, []string{"administrator"})
			},
			requirement:  metricsRequirement,
			wantRedirect: "/dashboard",
		},
		{
			name: "no matching role",
			token: func(t *testing.T) string {
				return signedToken(t, []string{"metrics.list"}, []string{"viewer"})
			},
			requirement:  metricsRequirement,
			wantRedirect: "/dashboard",
		},
		{
			name:         "undecodable token with requirement",
			token:        func(*testing.T) string { return "opaque" },
			requirement:  metricsRequirement,
			wantRedirect: "/dashboard",
		},
		{
			name: "requirement met",
			token: func(t *testing.T) string {
				return signedToken(t, []string{"metrics.list", "users.list"}, []string{"editor"})
			},
			requirement: metricsRequirement,
			wantCalled:  true,
		},
		{
			name:       "no requirement",
			token:      func(*testing.T) string { return "opaque" },
			wantCalled: true,
		},
		{
			name:         "authentication required",
			token:        func(*testing.T) string { return "opaque" },
			loaderErr:    fmt.Errorf("[page] %w", errors.ErrAuthenticationRequired),
			wantCalled:   true,
			wantRedirect: "/",
			wantCleared:  true,
		},
		{
			name:       "other errors propagate",
			token:      func(*testing.T) string { return "opaque" },
			loaderErr:  errBoom,
			wantCalled: true,
			wantErr:    errBoom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newContext(t, tt.token(t))
			called := false

			result, err := guard.AuthGuard(loaderReturning(loaded, tt.loaderErr, &called), tt.requirement)(c)
			require.Equal(t, tt.wantCalled, called)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			if tt.wantRedirect != "" {
				require.Equal(t, guard.RedirectTo(tt.wantRedirect, false), result)
			} else {
				require.Equal(t, loaded, result)
			}
			require.Equal(t, !tt.wantCleared && tt.token(t) != "", sessions.HasSession(context.Background(), c.Store))
		})
	}
}

func TestGuestGuard(t *testing.T) {
	loaded := guard.Result{Props: props{Title: "Login"}}

	t.Run("no token passes the loader result through", func(t *testing.T) {
		called := false
		result, err := guard.GuestGuard(loaderReturning(loaded, nil, &called))(newContext(t, ""))
		require.NoError(t, err)
		require.True(t, called)
		require.Equal(t, loaded, result)
	})

	t.Run("token redirects to the dashboard", func(t *testing.T) {
		called := false
		result, err := guard.GuestGuard(loaderReturning(loaded, nil, &called))(newContext(t, "opaque"))
		require.NoError(t, err)
		require.False(t, called)
		require.Equal(t, guard.RedirectTo("/dashboard", false), result)
	})
}

func TestGuards_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	g := guard.New(guard.WithMetrics(metrics.New(reg)))
	noop := func(*guard.Context) (guard.Result, error) { return guard.Result{}, nil }

	_, err := g.AuthGuard(noop, nil)(newContext(t, ""))
	require.NoError(t, err)
	_, err = g.AuthGuard(noop, nil)(newContext(t, "opaque"))
	require.NoError(t, err)
	_, err = g.GuestGuard(noop)(newContext(t, "opaque"))
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "auth_guard_decisions_total")
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

// fakeAPI answers /me and /refresh the way the backend does.
func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /me", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Header.Get("Authorization") {
		case "Bearer fresh":
			_ = json.NewEncoder(w).Encode(sessions.User{Email: "diego@example.com"})
		case "Bearer stale":
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(apiclient.ErrorResponse{Error: true, Code: apiclient.CodeTokenExpired})
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(apiclient.ErrorResponse{Error: true, Code: "token.invalid"})
		}
	})
	mux.HandleFunc("POST /refresh", func(w http.ResponseWriter, r *http.Request) {
		var req apiclient.RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken != "refresh-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(apiclient.RefreshResponse{Token: "fresh", RefreshToken: "refresh-2"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHandler(t *testing.T) {
	api := fakeAPI(t)
	factory := guard.NewContextFactory(api.URL, config.Cookies{})

	me := guard.AuthGuard(func(c *guard.Context) (guard.Result, error) {
		user, err := c.API.Me(c.Context())
		if err != nil {
			return guard.Result{}, err
		}
		return guard.Result{Props: user.Email}, nil
	}, nil)
	render := func(w http.ResponseWriter, _ *http.Request, props any) error {
		_, err := fmt.Fprintf(w, "hello %v", props)
		return err
	}
	handler := guard.Handler(factory, me, render)

	serve := func(cookies ...*http.Cookie) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}
	cookie := func(name, value string) *http.Cookie {
		return &http.Cookie{Name: name, Value: value}
	}
	responseCookies := func(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
		out := make(map[string]*http.Cookie)
		for _, c := range rec.Result().Cookies() {
			out[c.Name] = c
		}
		return out
	}

	t.Run("no session redirects temporarily", func(t *testing.T) {
		rec := serve()
		require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
		require.Equal(t, "/", rec.Header().Get("Location"))
	})

	t.Run("renders with a valid token", func(t *testing.T) {
		rec := serve(cookie(config.DefaultTokenCookieName, "fresh"))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "hello diego@example.com", rec.Body.String())
	})

	t.Run("refreshes during rendering and persists the new pair", func(t *testing.T) {
		rec := serve(
			cookie(config.DefaultTokenCookieName, "stale"),
			cookie(config.DefaultRefreshTokenCookieName, "refresh-1"),
		)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "hello diego@example.com", rec.Body.String())

		cookies := responseCookies(rec)
		require.Equal(t, "fresh", cookies[config.DefaultTokenCookieName].Value)
		require.Equal(t, "refresh-2", cookies[config.DefaultRefreshTokenCookieName].Value)
	})

	t.Run("rejected token clears cookies and redirects", func(t *testing.T) {
		rec := serve(cookie(config.DefaultTokenCookieName, "forged"))
		require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
		require.Equal(t, "/", rec.Header().Get("Location"))

		cookies := responseCookies(rec)
		require.Contains(t, cookies, config.DefaultTokenCookieName)
		require.Less(t, cookies[config.DefaultTokenCookieName].MaxAge, 0)
	})

	t.Run("permanent redirect", func(t *testing.T) {
		moved := guard.Handler(factory, func(*guard.Context) (guard.Result, error) {
			return guard.RedirectTo("/elsewhere", true), nil
		}, render)
		rec := httptest.NewRecorder()
		moved.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/old", nil))
		require.Equal(t, http.StatusPermanentRedirect, rec.Code)
		require.Equal(t, "/elsewhere", rec.Header().Get("Location"))
	})

	t.Run("loader errors are a 500", func(t *testing.T) {
		failing := guard.Handler(factory, func(*guard.Context) (guard.Result, error) {
			return guard.Result{}, fmt.Errorf("boom")
		}, render)
		rec := httptest.NewRecorder()
		failing.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandler_ClientGoneDuringRefresh(t *testing.T) {
	arrived := make(chan struct{})
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /me", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(apiclient.ErrorResponse{Error: true, Code: apiclient.CodeTokenExpired})
	})
	mux.HandleFunc("POST /refresh", func(w http.ResponseWriter, r *http.Request) {
		close(arrived)
		<-release
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(apiclient.RefreshResponse{Token: "fresh", RefreshToken: "refresh-2"})
	})
	api := httptest.NewServer(mux)
	t.Cleanup(api.Close)

	handler := guard.Handler(guard.NewContextFactory(api.URL, config.Cookies{}),
		guard.AuthGuard(func(c *guard.Context) (guard.Result, error) {
			_, err := c.API.Me(c.Context())
			return guard.Result{}, err
		}, nil),
		func(http.ResponseWriter, *http.Request, any) error { return nil },
	)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil).WithContext(ctx)
	req.AddCookie(&http.Cookie{Name: config.DefaultTokenCookieName, Value: "stale"})
	req.AddCookie(&http.Cookie{Name: config.DefaultRefreshTokenCookieName, Value: "refresh-1"})
	rec := httptest.NewRecorder()

	served := make(chan struct{})
	go func() {
		handler.ServeHTTP(rec, req)
		close(served)
	}()

	<-arrived
	cancel()
	select {
	case <-served:
		t.Fatal("handler returned while the refresh could still write its cookies")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-served:
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not return after the refresh settled")
	}

	var fresh bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == config.DefaultTokenCookieName && c.Value == "fresh" {
			fresh = true
		}
	}
	require.True(t, fresh, "the refreshed pair is written before the handler returns")
}
