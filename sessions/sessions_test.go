package sessions_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const (
	tokenKey   = config.DefaultTokenCookieName
	refreshKey = config.DefaultRefreshTokenCookieName
)

func TestCookieStore(t *testing.T) {
	ctx := context.Background()
	cfg := config.New()

	t.Run("no cookies means no session", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		s := sessions.NewCookieStore(httptest.NewRecorder(), r, cfg)

		_, err := s.Token(ctx)
		require.ErrorIs(t, err, errors.ErrNoSession)
		require.False(t, sessions.HasSession(ctx, s))
	})

	t.Run("reads request cookies", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: tokenKey, Value: "access-1"})
		r.AddCookie(&http.Cookie{Name: refreshKey, Value: "refresh-1"})
		s := sessions.NewCookieStore(httptest.NewRecorder(), r, cfg)

		tok, err := s.Token(ctx)
		require.NoError(t, err)
		require.Equal(t, "access-1", tok.AccessToken)
		require.Equal(t, "refresh-1", tok.RefreshToken)
		require.Equal(t, "Bearer", tok.Type())
	})

	t.Run("set writes cookies and is visible to later reads", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: tokenKey, Value: "stale"})
		s := sessions.NewCookieStore(rec, r, cfg)

		require.NoError(t, s.SetToken(ctx, sessions.NewToken("access-2", "refresh-2")))
		require.Equal(t, "access-2", sessions.AccessToken(ctx, s))

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 2)
		for _, c := range cookies {
			require.Equal(t, "/", c.Path)
			require.Equal(t, int((30 * 24 * time.Hour).Seconds()), c.MaxAge)
		}
	})

	t.Run("clear expires cookies", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: tokenKey, Value: "access-1"})
		s := sessions.NewCookieStore(rec, r, cfg)

		require.NoError(t, s.Clear(ctx))
		require.False(t, sessions.HasSession(ctx, s))
		for _, c := range rec.Result().Cookies() {
			require.Equal(t, -1, c.MaxAge)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	sessions.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { sessions.NowTimeFunc = time.Now })

	s := sessions.NewMemoryStore(tokenKey, refreshKey, time.Hour)
	require.False(t, sessions.HasSession(ctx, s))

	require.NoError(t, s.SetToken(ctx, sessions.NewToken("a", "r")))
	tok, err := s.Token(ctx)
	require.NoError(t, err)
	require.Equal(t, "a", tok.AccessToken)
	require.Equal(t, "r", tok.RefreshToken)

	t.Run("expires after max age", func(t *testing.T) {
		now = now.Add(2 * time.Hour)
		_, err := s.Token(ctx)
		require.ErrorIs(t, err, errors.ErrNoSession)
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, s.SetToken(ctx, sessions.NewToken("a", "r")))
		require.NoError(t, s.Clear(ctx))
		require.False(t, sessions.HasSession(ctx, s))
	})
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := sessions.NewRedisStore(rdb, "browser-1", tokenKey, refreshKey, 30*24*time.Hour)
	_, err = s.Token(ctx)
	require.ErrorIs(t, err, errors.ErrNoSession)

	require.NoError(t, s.SetToken(ctx, sessions.NewToken("a", "r")))
	tok, err := s.Token(ctx)
	require.NoError(t, err)
	require.Equal(t, "a", tok.AccessToken)
	require.Equal(t, "r", tok.RefreshToken)
	require.Equal(t, 30*24*time.Hour, mr.TTL("browser-1:"+tokenKey))

	t.Run("another process sees the same pair", func(t *testing.T) {
		other := sessions.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "browser-1", tokenKey, refreshKey, time.Hour)
		require.Equal(t, "a", sessions.AccessToken(ctx, other))
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, s.Clear(ctx))
		require.False(t, sessions.HasSession(ctx, s))
	})
}

func TestDecodeClaims(t *testing.T) {
	signed := func(t *testing.T, claims jwtlib.MapClaims, secret string) string {
		t.Helper()
		tok, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return tok
	}

	t.Run("reads permissions and roles", func(t *testing.T) {
		tok := signed(t, jwtlib.MapClaims{
			"sub":         "diego@example.com",
			"permissions": []string{"users.list", "metrics.list"},
			"roles":       []string{"administrator"},
		}, "secret")

		user, err := sessions.DecodeClaims(tok)
		require.NoError(t, err)
		require.Equal(t, "diego@example.com", user.Email)
		require.Equal(t, []string{"users.list", "metrics.list"}, user.Permissions)
		require.Equal(t, []string{"administrator"}, user.Roles)
		require.True(t, user.HasRole("administrator"))
		require.False(t, user.HasPermission("users.create"))
	})

	t.Run("signature and expiry are not checked", func(t *testing.T) {
		tok := signed(t, jwtlib.MapClaims{
			"email": "x@example.com",
			"exp":   time.Now().Add(-time.Hour).Unix(),
			"roles": []string{"editor"},
		}, "some-other-secret")

		user, err := sessions.DecodeClaims(tok)
		require.NoError(t, err)
		require.Equal(t, "x@example.com", user.Email)
		require.Empty(t, user.Permissions)
		require.Equal(t, []string{"editor"}, user.Roles)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := sessions.DecodeClaims("not-a-jwt")
		require.ErrorIs(t, err, errors.ErrInvalidToken)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := sessions.DecodeClaims("")
		require.ErrorIs(t, err, errors.ErrNoSession)
	})
}
