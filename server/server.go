// Package server exposes the semantic cache over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/smartcache/internal/profile"
	apiv1 "github.com/hrygo/smartcache/server/router/api/v1"
)

type Server struct {
	Profile *profile.Profile
	Cache   apiv1.CacheService

	echoServer *echo.Echo
	logger     *slog.Logger
}

func NewServer(profile *profile.Profile, cache apiv1.CacheService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	echoServer := echo.New()
	echoServer.Debug = profile.IsDev() && profile.Debug
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.Recover())
	echoServer.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelDebug
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Int64("duration_ms", v.Latency.Milliseconds()),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			logger.LogAttrs(c.Request().Context(), level, "http request", attrs...)
			return nil
		},
	}))

	apiv1.NewAPIV1Service(profile, cache, logger).RegisterRoutes(echoServer)

	return &Server{
		Profile:    profile,
		Cache:      cache,
		echoServer: echoServer,
		logger:     logger,
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// Start listens on the profile address and blocks until Shutdown.
func (s *Server) Start() error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	s.logger.Info("smartcache server listening", slog.String("address", address), slog.String("mode", s.Profile.Mode))
	if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "failed to start server")
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echoServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "failed to shutdown server")
	}
	s.logger.Info("smartcache server stopped")
	return nil
}
