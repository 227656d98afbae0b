// Package server runs the HTTP listener that carries the websocket gateway
// and the read-only API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/huddle/internal/collab"
	"github.com/colonyops/huddle/internal/core/logging"
)

// Options configures the HTTP server.
type Options struct {
	Addr string
	// Gateway serves websocket upgrades on /ws.
	Gateway http.Handler
	Service *collab.Service
	// Pprof mounts /debug/pprof routes.
	Pprof bool
}

type Server struct {
	httpServer *http.Server
	listener   net.Listener
	addr       string
	log        zerolog.Logger
}

func New(opts Options) *Server {
	return &Server{
		httpServer: &http.Server{
			Handler:           routes(opts),
			ReadHeaderTimeout: 10 * time.Second,
		},
		addr: opts.Addr,
		log:  logging.Component("server"),
	}
}

// Start binds the listener and serves in the background. It returns once
// the server is accepting connections or failed to start.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	s.listener = listener

	s.log.Info().Str("addr", listener.Addr().String()).Msg("starting http server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("http server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests. Hijacked websocket connections are not
// tracked by net/http; the gateway closes those.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}
