// Package api serves stored transactions and on-demand refreshes over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikey/mail-ledger/internal/core"
	"go.uber.org/zap"
)

// Refresher runs one ingestion pass over a window
type Refresher interface {
	Refresh(ctx context.Context, r core.DateRange) (*core.BatchSummary, error)
}

// Options configures the HTTP listener
type Options struct {
	ListenAddr      string
	RefreshTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Server is the gin-backed HTTP surface
type Server struct {
	repo      core.TransactionRepository
	refresher Refresher
	logger    *zap.Logger
	opts      Options
	engine    *gin.Engine
	http      *http.Server
	now       func() time.Time
}

// NewServer creates a new API server and registers its routes
func NewServer(repo core.TransactionRepository, refresher Refresher, logger *zap.Logger, opts Options) *Server {
	if opts.ListenAddr == "" {
		opts.ListenAddr = ":8080"
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = 5 * time.Minute
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		repo:      repo,
		refresher: refresher,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())
	s.routes(engine)
	s.engine = engine

	s.http = &http.Server{
		Addr:              opts.ListenAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/health", s.handleHealth)

	tx := r.Group("/transactions")
	{
		tx.GET("", s.handleList)
		tx.POST("/refresh", s.handleRefresh)
		tx.GET("/:id", s.handleGet)
		tx.PATCH("/:id", s.handleUpdate)
		tx.DELETE("/:id", s.handleDelete)
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens in the background
func (s *Server) Start() error {
	s.logger.Info("HTTP API starting", zap.String("address", s.opts.ListenAddr))

	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop drains in-flight requests
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
