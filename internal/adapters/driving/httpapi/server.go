// Package httpapi serves the retrieval engine as a JSON REST API.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/custodia-labs/verselens-cli/internal/core/ports/driving"
	"github.com/custodia-labs/verselens-cli/internal/logger"
)

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("httpapi: search service is required")

// shutdownTimeout bounds graceful shutdown after the context is cancelled.
const shutdownTimeout = 5 * time.Second

// Options configures the REST server.
type Options struct {
	// AllowOrigins lists CORS origins. Empty allows any origin.
	AllowOrigins []string
}

// Server is the REST API for verselens.
type Server struct {
	search driving.SearchService
	echo   *echo.Echo
}

// NewServer creates the server and registers its routes.
func NewServer(search driving.SearchService, opts Options) (*Server, error) {
	if search == nil {
		return nil, ErrMissingSearchService
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("%s %s %d %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))
	cors := middleware.DefaultCORSConfig
	if len(opts.AllowOrigins) > 0 {
		cors.AllowOrigins = opts.AllowOrigins
	}
	cors.AllowMethods = []string{http.MethodGet, http.MethodOptions}
	e.Use(middleware.CORSWithConfig(cors))

	s := &Server{search: search, echo: e}
	s.registerRoutes()
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves on addr until the context is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)

	api := s.echo.Group("/api")
	api.GET("/search", s.handleSearch)
	api.GET("/similar/:verseID", s.handleSimilar)
	api.GET("/lexical", s.handleLexical)
	api.GET("/verses/:book/:chapter/:verse", s.handleVerse)
}
