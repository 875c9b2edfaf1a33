// Package httpapi serves the breadstamp REST API under /api/v1 using echo.
package httpapi

import (
	"breadstamp/internal/adapters/export"
	"breadstamp/internal/core"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server wires the service into an echo router.
type Server struct {
	svc      *core.Service
	exports  export.Scheduler
	logger   *zap.Logger
	limiter  *RateLimiter
	registry prometheus.Registerer
	gatherer prometheus.Gatherer
	echo     *echo.Echo
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the access and error logger. Nil is ignored.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRateLimiter enables per-client rate limiting.
func WithRateLimiter(l *RateLimiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithExports mounts the export endpoints.
func WithExports(e export.Scheduler) Option {
	return func(s *Server) { s.exports = e }
}

// WithPrometheus registers HTTP collectors on reg and serves gatherer at /metrics.
func WithPrometheus(reg prometheus.Registerer, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.registry = reg
		s.gatherer = gatherer
	}
}

// New builds the router.
func New(svc *core.Service, opts ...Option) (*Server, error) {
	s := &Server{svc: svc, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	if s.registry != nil {
		m, err := newHTTPMetrics(s.registry)
		if err != nil {
			return nil, err
		}
		e.Use(m.middleware())
	}
	e.Use(accessLog(s.logger.Named("http")))
	e.Use(middleware.Recover())
	if s.limiter != nil {
		e.Use(s.limiter.Middleware())
	}

	e.GET("/healthz", s.healthz)
	if s.gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	api := e.Group("/api/v1")
	api.GET("/openapi.yaml", s.openAPI)
	api.GET("/categories", s.listCategories)

	api.GET("/bakeries", s.listBakeries)
	api.POST("/bakeries", s.createBakery)
	api.GET("/bakeries/:id", s.getBakery)
	api.PATCH("/bakeries/:id", s.updateBakery)
	api.DELETE("/bakeries/:id", s.deleteBakery)
	api.POST("/bakeries/:id/favorite", s.toggleFavorite)
	api.GET("/bakeries/:id/breads", s.breadsForBakery)
	s.photoRoutes(api, "/bakeries/:id", bakeryPhotos)

	api.GET("/breads", s.listBreads)
	api.POST("/breads", s.createBread)
	api.GET("/breads/:id", s.getBread)
	api.PATCH("/breads/:id", s.updateBread)
	api.DELETE("/breads/:id", s.deleteBread)
	s.photoRoutes(api, "/breads/:id", breadPhotos)

	api.GET("/stats", s.statistics)
	api.GET("/achievements", s.achievements)

	if s.exports != nil {
		api.POST("/exports", s.createExport)
		api.GET("/exports/:id", s.getExport)
		api.GET("/exports/:id/files/:name", s.downloadExport)
	}

	s.echo = e
	return s, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Config controls the listener.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, cfg Config) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.echo,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
