// Package api serves registered conformal predictors over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"gocp/internal"
	"gocp/internal/persistence"

	"github.com/gin-gonic/gin"
)

// Server is the prediction API.
type Server struct {
	router       *gin.Engine
	models       *Registry
	snapshots    *persistence.Storage
	logger       *internal.Logger
	significance float64
	maxBatch     int
}

// Option configures a Server.
type Option func(*Server)

// WithSnapshots exposes the snapshot listing.
func WithSnapshots(s *persistence.Storage) Option {
	return func(srv *Server) { srv.snapshots = s }
}

// WithLogger sets the request logger.
func WithLogger(l *internal.Logger) Option {
	return func(srv *Server) { srv.logger = l }
}

// WithDefaultSignificance is used when a request leaves the level unset.
func WithDefaultSignificance(s float64) Option {
	return func(srv *Server) { srv.significance = s }
}

// WithMaxBatch bounds the rows of one request.
func WithMaxBatch(n int) Option {
	return func(srv *Server) { srv.maxBatch = n }
}

// NewServer creates a server over models.
func NewServer(models *Registry, opts ...Option) *Server {
	s := &Server{
		models:       models,
		logger:       internal.NewNopLogger(),
		significance: 0.1,
		maxBatch:     1000,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = gin.New()
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/healthz", s.handleHealth)

	v1 := s.router.Group("/v1")
	{
		v1.GET("/models", s.handleListModels)
		v1.POST("/models/:name/classify", s.handleClassify)
		v1.POST("/models/:name/interval", s.handleInterval)
		v1.GET("/snapshots", s.handleListSnapshots)
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves on addr until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("prediction API listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("%s %s -> %d in %s", c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
