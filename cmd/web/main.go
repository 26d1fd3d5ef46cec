package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/internal/httpserver"
	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/jrsteele09/go-auth-client/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := config.New()
	banner(c.GetAppName())

	// A crashed server is restarted until the process is told to stop.
	for ctx.Err() == nil {
		if err := run(ctx, c); err != nil {
			log.Err(err).Msg("Web app failed, restarting")
			time.Sleep(time.Second)
		}
	}
	log.Info().Msg("Web app stopped")
}

func run(ctx context.Context, c config.Config) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Bytes("stack", debug.Stack()).Msgf("Recovered from panic: %v", r)
			returnError = errors.New("panic recovered")
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	handler, err := server.New(c, server.WithMetrics(metrics.New(reg), reg))
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}
	log.Info().Str("api", c.GetAPIBaseURL()).Msg("Using API")
	return httpserver.ListenAndServe(ctx, "Web app", c.GetPort(), handler)
}

func banner(appname string) {
	figure.NewFigure(appname, "cybermedium", true).Print()
	fmt.Println()
}
