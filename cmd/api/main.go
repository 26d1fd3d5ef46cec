package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-client/apiserver"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/internal/httpserver"
	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/jrsteele09/go-auth-client/token"
	"github.com/jrsteele09/go-auth-client/token/refresh"
	"github.com/jrsteele09/go-auth-client/token/refresh/redisrepo"
	refreshrepofake "github.com/jrsteele09/go-auth-client/token/refresh/repofake"
	"github.com/jrsteele09/go-auth-client/users"
	fakeuserrepo "github.com/jrsteele09/go-auth-client/users/repofake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running API")
	}
	log.Info().Msg("API stopped")
}

func run() error {
	c := config.New()
	figure.NewFigure(c.GetAppName()+" API", "cybermedium", true).Print()
	fmt.Println()

	userRepo := fakeuserrepo.NewFakeUserRepo()
	seeded, err := users.SeedDemoUsers(userRepo)
	if err != nil {
		return err
	}
	for _, u := range seeded {
		log.Info().Str("email", u.Email).Strs("roles", u.Roles).Msgf("Demo user (password %s)", users.DemoPassword)
	}

	refreshRepo, closeRepo, err := refreshTokenRepo(c)
	if err != nil {
		return err
	}
	defer closeRepo()

	reg := prometheus.NewRegistry()
	handler := apiserver.New(c.GetEnv(), userRepo,
		token.NewCreator(c, token.NewHMACSigner(c.GetJWTSecret(), c.GetRetiredJWTSecrets()...)),
		refresh.NewManager(refreshRepo, c.GetRefreshTokenLength(), c.GetRefreshTokenExpiry()),
		apiserver.WithMetrics(metrics.New(reg), reg),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return httpserver.ListenAndServe(ctx, "API", c.GetAPIPort(), handler)
}

// refreshTokenRepo keeps refresh tokens in Redis when REDIS_ADDR is set, in memory otherwise.
func refreshTokenRepo(c config.Config) (refresh.Repo, func(), error) {
	if c.GetRedisAddr() == "" {
		return refreshrepofake.NewFakeRefreshTokenRepo(), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: c.GetRedisAddr()})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("connecting to redis at %s: %w", c.GetRedisAddr(), err)
	}
	log.Info().Str("addr", c.GetRedisAddr()).Msg("Refresh tokens stored in Redis")
	return redisrepo.New(rdb, "refresh", c.GetRefreshTokenExpiry()), func() { _ = rdb.Close() }, nil
}
