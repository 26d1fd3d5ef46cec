// Package tab holds the session of one UI tab: sign-in, sign-out propagated to every other
// tab of the browsing context, restoring the user on startup and permission checks for fragments.
package tab

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/broadcast"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/jrsteele09/go-auth-client/permissions"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Navigator redirects the tab to a path.
type Navigator interface {
	Push(path string)
}

// NavigatorFunc adapts a function to a Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Push(path string) {
	f(path)
}

var _ apiclient.SignOuter = (*Tab)(nil)

// Tab is one open tab. Its broadcast subscription lives as long as the tab.
type Tab struct {
	id      string
	store   sessions.Store
	channel broadcast.Channel
	nav     Navigator
	routes  config.RouteConfig
	api     *apiclient.Client
	log     zerolog.Logger
	metrics *metrics.Metrics

	channelName string
	apiOpts     []apiclient.Option

	mu      sync.RWMutex
	session *sessions.Session
}

type Option func(*Tab)

func WithRoutes(routes config.RouteConfig) Option {
	return func(t *Tab) { t.routes = routes }
}

func WithChannelName(name string) Option {
	return func(t *Tab) { t.channelName = name }
}

func WithLogger(l zerolog.Logger) Option {
	return func(t *Tab) { t.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tab) { t.metrics = m }
}

// WithClientOptions passes options to the tab's API client.
func WithClientOptions(opts ...apiclient.Option) Option {
	return func(t *Tab) { t.apiOpts = append(t.apiOpts, opts...) }
}

// Open starts a tab: it subscribes to the session channel and builds the tab's API client.
func Open(ctx context.Context, baseURL string, store sessions.Store, opener broadcast.Opener, nav Navigator, opts ...Option) (*Tab, error) {
	t := &Tab{
		id:          uuid.New().String(),
		store:       store,
		nav:         nav,
		routes:      config.Routes{},
		log:         log.Logger,
		channelName: config.DefaultBroadcastChannelName,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = t.log.With().Str("tab", t.id).Logger()

	channel, err := opener.Open(ctx, t.channelName)
	if err != nil {
		return nil, fmt.Errorf("[tab Open] %w", err)
	}
	t.channel = channel

	clientOpts := append([]apiclient.Option{
		apiclient.WithMode(apiclient.ModeTab),
		apiclient.WithSignOut(t),
		apiclient.WithLogger(t.log),
		apiclient.WithMetrics(t.metrics),
		apiclient.WithRefreshListener(t.refreshed),
	}, t.apiOpts...)
	t.api, err = apiclient.New(ctx, baseURL, store, clientOpts...)
	if err != nil {
		_ = channel.Close()
		return nil, fmt.Errorf("[tab Open] %w", err)
	}

	t.channel.Listen(t.onMessage)
	return t, nil
}

func (t *Tab) ID() string {
	return t.id
}

// API returns the tab's authenticated client.
func (t *Tab) API() *apiclient.Client {
	return t.api
}

// Session returns a copy of the in-memory session, or nil when signed out.
func (t *Tab) Session() *sessions.Session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.session == nil {
		return nil
	}
	s := *t.session
	return &s
}

func (t *Tab) User() *sessions.User {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.session == nil {
		return nil
	}
	return t.session.User
}

func (t *Tab) IsAuthenticated() bool {
	return t.User() != nil
}

// Can reports whether the signed-in user satisfies req. Signed-out tabs can do nothing.
func (t *Tab) Can(req permissions.Requirement) bool {
	return permissions.Evaluate(t.User(), req)
}

// SignIn authenticates, persists both tokens, fills the in-memory session and
// moves the tab to the authenticated landing route.
func (t *Tab) SignIn(ctx context.Context, creds apiclient.Credentials) error {
	resp, err := t.api.Login(ctx, creds)
	if err != nil {
		t.log.Err(err).Str("email", creds.Email).Msg("Sign in failed")
		return err
	}

	tok := sessions.NewToken(resp.Token, resp.RefreshToken)
	if err := t.store.SetToken(ctx, tok); err != nil {
		return fmt.Errorf("[Tab SignIn] %w", err)
	}

	t.mu.Lock()
	t.session = sessions.FromToken(tok, &sessions.User{
		Email:       creds.Email,
		Permissions: resp.Permissions,
		Roles:       resp.Roles,
	})
	t.mu.Unlock()

	t.api.SetAccessToken(resp.Token)
	t.log.Info().Str("email", creds.Email).Msg("Signed in")
	t.nav.Push(t.routes.GetAuthenticatedLandingRoute())
	return nil
}

// Restore reloads the user behind a persisted token. Any failure signs the tab out.
func (t *Tab) Restore(ctx context.Context) error {
	tok, err := t.store.Token(ctx)
	if errors.Is(err, errors.ErrNoSession) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("[Tab Restore] %w", err)
	}

	t.api.SetAccessToken(tok.AccessToken)
	user, err := t.api.Me(ctx)
	if err != nil {
		// Denied requests and failed refreshes have already signed out.
		if !errors.Is(err, apiclient.ErrAuthorizationDenied) && !errors.Is(err, apiclient.ErrRefreshFailed) {
			if signOutErr := t.SignOut(ctx); signOutErr != nil {
				return errors.Join(err, signOutErr)
			}
		}
		return fmt.Errorf("[Tab Restore] %w", err)
	}

	// A refresh may have rotated the pair while /me was in flight.
	if current, err := t.store.Token(ctx); err == nil {
		tok = current
	}

	t.mu.Lock()
	t.session = sessions.FromToken(tok, user)
	t.mu.Unlock()
	return nil
}

// SignOut drops the session, tells every other tab and moves this tab to the guest landing route.
func (t *Tab) SignOut(ctx context.Context) error {
	clearErr := t.clearLocal(ctx)
	postErr := t.channel.Post(ctx, broadcast.EventSignOut)

	t.metrics.SignedOut("local")
	t.log.Info().Msg("Signed out")
	t.nav.Push(t.routes.GetGuestLandingRoute())
	return errors.Join(clearErr, postErr)
}

// Close ends the tab's subscription.
func (t *Tab) Close() error {
	return t.channel.Close()
}

// onMessage reacts to other tabs. It never re-posts, so a sign-out does not echo.
func (t *Tab) onMessage(ev broadcast.Event) {
	switch ev {
	case broadcast.EventSignOut:
		if err := t.clearLocal(context.Background()); err != nil {
			t.log.Err(err).Msg("Clearing session after broadcast sign out failed")
		}
		t.metrics.SignedOut("broadcast")
		t.log.Info().Msg("Signed out by another tab")
		t.nav.Push(t.routes.GetGuestLandingRoute())
	default:
	}
}

func (t *Tab) clearLocal(ctx context.Context) error {
	t.mu.Lock()
	t.session = nil
	t.mu.Unlock()

	t.api.SetAccessToken("")
	return t.store.Clear(ctx)
}

func (t *Tab) refreshed(tok *oauth2.Token) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session != nil {
		t.session.AccessToken = tok.AccessToken
		t.session.RefreshToken = tok.RefreshToken
	}
}
