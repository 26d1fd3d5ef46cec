package sessions

import (
	"context"
	"net/http"
	"sync"

	"github.com/jrsteele09/go-auth-client/internal/config"
	"golang.org/x/oauth2"
)

var _ Store = (*CookieStore)(nil)

// CookieStore is the server-side Store for one inbound request. Reads come from the request's
// cookies; writes are emitted as Set-Cookie headers and are visible to later reads of the same request.
type CookieStore struct {
	w   http.ResponseWriter
	r   *http.Request
	cfg config.CookieConfig

	mu        sync.Mutex
	overrides map[string]*http.Cookie
}

// NewCookieStore reads the request's cookies fresh; nothing is cached across requests.
func NewCookieStore(w http.ResponseWriter, r *http.Request, cfg config.CookieConfig) *CookieStore {
	return &CookieStore{
		w:         w,
		r:         r,
		cfg:       cfg,
		overrides: make(map[string]*http.Cookie),
	}
}

func (s *CookieStore) Token(_ context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return noSession(NewToken(
		s.value(s.cfg.GetTokenCookieName()),
		s.value(s.cfg.GetRefreshTokenCookieName()),
	))
}

func (s *CookieStore) SetToken(_ context.Context, tok *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.set(s.cfg.GetTokenCookieName(), tok.AccessToken, int(s.cfg.GetCookieMaxAge().Seconds()))
	s.set(s.cfg.GetRefreshTokenCookieName(), tok.RefreshToken, int(s.cfg.GetCookieMaxAge().Seconds()))
	return nil
}

func (s *CookieStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.set(s.cfg.GetTokenCookieName(), "", -1)
	s.set(s.cfg.GetRefreshTokenCookieName(), "", -1)
	return nil
}

func (s *CookieStore) value(name string) string {
	if c, ok := s.overrides[name]; ok {
		if c.MaxAge < 0 {
			return ""
		}
		return c.Value
	}
	if s.r == nil {
		return ""
	}
	c, err := s.r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func (s *CookieStore) set(name, value string, maxAge int) {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     s.cfg.GetCookiePath(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cfg.GetCookieSecure(),
		SameSite: http.SameSiteLaxMode,
	}
	s.overrides[name] = c
	if s.w != nil {
		http.SetCookie(s.w, c)
	}
}
