// Package httpserver runs an http.Handler until its context ends, then drains it.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// ListenAndServe serves handler on addr until ctx is cancelled.
func ListenAndServe(ctx context.Context, name, addr string, handler http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("[httpserver ListenAndServe] %w", err)
	}
	return Serve(ctx, name, ln, handler)
}

// Serve serves handler on ln until ctx is cancelled. In-flight requests get
// a few seconds to finish before the listener is torn down.
func Serve(ctx context.Context, name string, ln net.Listener, handler http.Handler) error {
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: readHeaderTimeout}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", ln.Addr().String()).Msgf("%s listening", name)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("[httpserver Serve] %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("[httpserver Shutdown] %w", err)
		}
		log.Info().Msgf("%s stopped", name)
		return nil
	})
	return g.Wait()
}
