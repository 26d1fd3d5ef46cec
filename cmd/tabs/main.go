// Command tabs drives several tabs of one browsing context against the API: one signs in,
// the others restore the session, all of them call the API at once and finally one signs out
// everywhere. With REDIS_ADDR set the tabs share their session and channel through Redis, so
// several processes behave like tabs of the same browser.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/broadcast"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/tab"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	tabs := flag.Int("tabs", 3, "number of tabs to open")
	email := flag.String("email", "admin@example.com", "e-mail to sign in with")
	password := flag.String("password", "123456", "password to sign in with")
	session := flag.String("session", "", "browsing context id shared through Redis (default: new)")
	flag.Parse()

	if err := run(*tabs, *email, *password, *session); err != nil {
		log.Fatal().Err(err).Msg("Tabs failed")
	}
}

func run(n int, email, password, sessionID string) error {
	ctx := context.Background()
	c := config.New()

	store, opener, channel, closeAll, err := browsingContext(ctx, c, sessionID)
	if err != nil {
		return err
	}
	defer closeAll()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	tabs := make([]*tab.Tab, 0, n)
	for i := range n {
		name := fmt.Sprintf("tab-%d", i+1)
		t, err := tab.Open(ctx, c.GetAPIBaseURL(), store, opener,
			tab.NavigatorFunc(func(path string) { log.Info().Str("tab", name).Str("path", path).Msg("Navigated") }),
			tab.WithRoutes(c),
			tab.WithChannelName(channel),
			tab.WithMetrics(m),
			tab.WithLogger(log.Logger.With().Str("name", name).Logger()),
			tab.WithClientOptions(
				apiclient.WithHTTPClient(&http.Client{Timeout: c.GetHTTPTimeout()}),
				apiclient.WithRefreshTimeout(c.GetRefreshTimeout()),
			),
		)
		if err != nil {
			return err
		}
		defer t.Close()
		tabs = append(tabs, t)
	}

	if !sessions.HasSession(ctx, store) {
		if err := tabs[0].SignIn(ctx, apiclient.Credentials{Email: email, Password: password}); err != nil {
			return err
		}
	}
	for _, t := range tabs {
		if err := t.Restore(ctx); err != nil {
			return err
		}
	}

	var g errgroup.Group
	for _, t := range tabs {
		g.Go(func() error {
			user, err := t.API().Me(ctx)
			if err != nil {
				return err
			}
			log.Info().Str("tab", t.ID()).Str("email", user.Email).Strs("roles", user.Roles).Msg("Loaded user")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := tabs[len(tabs)-1].SignOut(ctx); err != nil {
		return err
	}
	// Let the other tabs receive the sign out before the channel closes.
	time.Sleep(200 * time.Millisecond)

	for _, t := range tabs {
		log.Info().Str("tab", t.ID()).Bool("authenticated", t.IsAuthenticated()).Msg("Final state")
	}
	return nil
}

// browsingContext returns the session store and channel shared by the tabs.
func browsingContext(ctx context.Context, c config.Config, sessionID string) (sessions.Store, broadcast.Opener, string, func(), error) {
	if c.GetRedisAddr() == "" {
		store := sessions.NewMemoryStore(c.GetTokenCookieName(), c.GetRefreshTokenCookieName(), c.GetCookieMaxAge())
		return store, broadcast.NewHub(), c.GetBroadcastChannelName(), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: c.GetRedisAddr()})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, "", nil, fmt.Errorf("connecting to redis at %s: %w", c.GetRedisAddr(), err)
	}
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	log.Info().Str("session", sessionID).Msg("Sharing the browsing context through Redis")

	prefix := "session:" + sessionID
	store := sessions.NewRedisStore(rdb, prefix, c.GetTokenCookieName(), c.GetRefreshTokenCookieName(), c.GetCookieMaxAge())
	return store, broadcast.NewRedisOpener(rdb), prefix + ":" + c.GetBroadcastChannelName(), func() { _ = rdb.Close() }, nil
}
