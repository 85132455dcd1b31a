// Package api exposes the document store and fanout queries over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skshohagmiah/flin-fanout/internal/config"
	"github.com/skshohagmiah/flin-fanout/internal/db"
)

// Server serves the HTTP API
type Server struct {
	db     *db.DocStore
	fanout config.FanoutConfig
	log    *slog.Logger
	engine *gin.Engine
	http   *http.Server

	// Metrics
	opsProcessed atomic.Uint64
	opsErrors    atomic.Uint64
}

// NewServer wires the routes; call Start to listen.
func NewServer(store *db.DocStore, cfg *config.Config, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		db:     store,
		fanout: cfg.Fanout,
		log:    log.With("component", "api"),
		engine: gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.routes()

	s.http = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.engine.Group("/v1/collections/:name")
	v1.POST("/documents", s.handleInsert)
	v1.GET("/documents/:id", s.handleGet)
	v1.PATCH("/documents/:id", s.handleUpdate(true))
	v1.PUT("/documents/:id", s.handleUpdate(false))
	v1.DELETE("/documents/:id", s.handleDelete)
	v1.GET("/count", s.handleCount)
	v1.GET("/indexes", s.handleListIndexes)
	v1.POST("/indexes", s.handleCreateIndex)
	v1.DELETE("/indexes/:field", s.handleDropIndex)
	v1.POST("/query", s.handleQuery)
	v1.POST("/explain", s.handleExplain)
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("http server stopping",
		"ops_processed", s.opsProcessed.Load(),
		"ops_errors", s.opsErrors.Load())
	return s.http.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if status >= http.StatusBadRequest {
			s.opsErrors.Add(1)
		} else {
			s.opsProcessed.Add(1)
		}
		s.log.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"duration", time.Since(start))
	}
}
