// Package server exposes the KV gateway over HTTP.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	apiv1 "github.com/beam-cloud/airkv/pkg/api/v1"
	"github.com/beam-cloud/airkv/pkg/kv"
	"github.com/beam-cloud/airkv/pkg/metrics"
	"github.com/beam-cloud/airkv/pkg/types"
)

const defaultShutdownTimeout = 10 * time.Second

type Server struct {
	Config types.HTTPConfig
	App    *kv.App

	echo           *echo.Echo
	httpServer     *http.Server
	listener       net.Listener
	baseRouteGroup *echo.Group
	rootRouteGroup *echo.Group
}

func NewServer(cfg types.HTTPConfig, app *kv.App) *Server {
	s := &Server{Config: cfg, App: app}
	s.initHTTP()
	return s
}

func (s *Server) initHTTP() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Keys may legitimately end in a slash
	e.Pre(middleware.RemoveTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		Skipper: func(c echo.Context) bool {
			return strings.Contains(c.Request().URL.Path, "/values/")
		},
	}))
	e.Use(apiv1.NewRequestIDMiddleware())
	e.Use(apiv1.NewRequestLogMiddleware())

	if len(s.Config.CORS.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: s.Config.CORS.AllowedOrigins,
			AllowHeaders: s.Config.CORS.AllowedHeaders,
			AllowMethods: s.Config.CORS.AllowedMethods,
		}))
	}

	e.Use(middleware.Recover())

	s.echo = e
	s.httpServer = &http.Server{
		Addr:              s.addr(),
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.baseRouteGroup = e.Group(apiv1.HttpServerBaseRoute)
	s.rootRouteGroup = e.Group(apiv1.HttpServerRootRoute)

	gateway := s.App.Gateway
	apiv1.NewHealthGroup(s.baseRouteGroup.Group("/health"), s.App.Settings)
	apiv1.NewFoldersGroup(s.baseRouteGroup.Group("/folders"), gateway)
	apiv1.NewRemoteGroup(s.baseRouteGroup.Group("/remote"), gateway)
	apiv1.NewNamespacesGroup(s.baseRouteGroup.Group("/namespaces"), gateway)

	if s.Config.EnableMetrics {
		s.rootRouteGroup.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	}
}

func (s *Server) addr() string {
	return fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
}

// Handler returns the HTTP handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Addr returns the bound address once the server is listening
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr()
}

// StartAsync binds the listener and serves in the background.
func (s *Server) StartAsync() error {
	lis, err := net.Listen("tcp", s.addr())
	if err != nil {
		return fmt.Errorf("failed to listen on http: %w", err)
	}
	s.listener = lis

	go func() {
		if err := s.httpServer.Serve(lis); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server error")
		}
	}()

	log.Info().Str("addr", lis.Addr().String()).Msg("airkv http server running")
	return nil
}

// Start serves until ctx is cancelled or a termination signal arrives.
func (s *Server) Start(ctx context.Context) error {
	if err := s.StartAsync(); err != nil {
		return err
	}

	terminationSignal := make(chan os.Signal, 1)
	signal.Notify(terminationSignal, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(terminationSignal)

	select {
	case <-terminationSignal:
		log.Info().Msg("termination signal received. shutting down...")
	case <-ctx.Done():
	}

	return s.Shutdown()
}

// Shutdown drains the HTTP server and closes the app.
func (s *Server) Shutdown() error {
	timeout := s.Config.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)

	// Stop HTTP server
	eg.Go(func() error {
		return s.httpServer.Shutdown(ctx)
	})

	if err := eg.Wait(); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
		return err
	}

	// Settings are closed only after in-flight requests have drained
	if err := s.App.Close(); err != nil {
		return err
	}

	log.Info().Msg("airkv http server stopped")
	return nil
}
