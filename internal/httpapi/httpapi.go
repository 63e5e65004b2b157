// Package httpapi serves a local HTTP view of a cache: stats, entries and
// Prometheus metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/codeGROOVE-dev/prcache"
)

// Server exposes the cache over HTTP.
type Server struct {
	echo     *echo.Echo
	cache    *prcache.Cache[json.RawMessage]
	log      *slog.Logger
	shutdown time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		if h != nil {
			s.echo.GET("/metrics", echo.WrapHandler(h))
		}
	}
}

// WithShutdownTimeout bounds graceful shutdown in Start. Default: 5s.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdown = d
		}
	}
}

// New builds the routes for c.
func New(c *prcache.Cache[json.RawMessage], opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		cache:    c,
		log:      slog.Default(),
		shutdown: 5 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			s.log.Debug("http request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	e.GET("/stats", s.stats)
	e.GET("/entries", s.keys)
	e.GET("/entries/*", s.get)
	e.DELETE("/entries", s.clear)
	e.DELETE("/entries/*", s.remove)

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.log.Info("http server listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("http server shutdown", "error", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) stats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.cache.Stats())
}

func (s *Server) keys(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]string{"keys": s.cache.Keys()})
}

func (s *Server) get(c echo.Context) error {
	key, err := entryKey(c)
	if err != nil {
		return err
	}
	v, ok := s.cache.Get(c.Request().Context(), key)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no cache entry for "+key)
	}
	return c.JSONBlob(http.StatusOK, v)
}

func (s *Server) remove(c echo.Context) error {
	key, err := entryKey(c)
	if err != nil {
		return err
	}
	s.cache.Remove(c.Request().Context(), key)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) clear(c echo.Context) error {
	n := s.cache.Clear(c.Request().Context())
	return c.JSON(http.StatusOK, map[string]int{"removed": n})
}

// entryKey returns the key under /entries/. Echo matches on RawPath when the
// request carries one, leaving the param escaped; otherwise the param comes
// from the already decoded Path and must not be unescaped again.
func entryKey(c echo.Context) (string, error) {
	key := c.Param("*")
	if c.Request().URL.RawPath != "" {
		var err error
		if key, err = url.PathUnescape(key); err != nil {
			return "", echo.NewHTTPError(http.StatusBadRequest, "invalid key")
		}
	}
	if key == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid key")
	}
	return key, nil
}

func (s *Server) handleError(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := http.StatusText(code)

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if str, ok := he.Message.(string); ok {
			msg = str
		}
	} else {
		s.log.Error("http handler failed", "error", err, "path", c.Path())
	}

	if !c.Response().Committed {
		if err := c.JSON(code, map[string]string{"error": msg}); err != nil {
			s.log.Warn("failed to write error response", "error", err)
		}
	}
}
