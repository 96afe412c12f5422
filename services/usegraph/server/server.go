// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes graph builds over HTTP.
package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/usegraph/services/usegraph/config"
	"github.com/AleutianAI/usegraph/services/usegraph/graph"
	"github.com/AleutianAI/usegraph/services/usegraph/pipeline"
)

// Defaults for Server.
const (
	DefaultCacheSize = 64
	DefaultScanRate  = 2.0
	DefaultScanBurst = 4
	requestIDHeader  = "X-Request-ID"
	otelServiceName  = "usegraph"
	defaultSnapLimit = 100
)

// cachedGraph is a build result held in the LRU cache.
type cachedGraph struct {
	ID     string
	Result *pipeline.Result
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSnapshots enables snapshot persistence and the snapshot endpoints.
func WithSnapshots(m *graph.SnapshotManager) Option {
	return func(s *Server) {
		s.snapshots = m
	}
}

// WithScanRate limits scans to r per second with the given burst.
func WithScanRate(r float64, burst int) Option {
	return func(s *Server) {
		s.limiter = rate.NewLimiter(rate.Limit(r), burst)
	}
}

// WithCacheSize bounds the number of graphs kept in memory.
func WithCacheSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.cacheSize = n
		}
	}
}

// Server serves graph builds.
//
// Thread Safety: Safe for concurrent use.
type Server struct {
	base      config.Config
	logger    *slog.Logger
	snapshots *graph.SnapshotManager
	limiter   *rate.Limiter
	cacheSize int
	cache     *lru.Cache[string, *cachedGraph]
	events    *hub
}

// New creates a server. base supplies defaults (excluded types, worker
// count, file size limit) for every scan.
func New(base config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		base:      base,
		logger:    slog.Default(),
		limiter:   rate.NewLimiter(rate.Limit(DefaultScanRate), DefaultScanBurst),
		cacheSize: DefaultCacheSize,
		events:    newHub(),
	}
	for _, opt := range opts {
		opt(s)
	}
	cache, err := lru.New[string, *cachedGraph](s.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating graph cache: %w", err)
	}
	s.cache = cache
	return s, nil
}

// Router builds the gin engine with all routes and middleware.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(otelServiceName))

	router.GET("/health", s.HandleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	s.RegisterRoutes(v1)
	return router
}

// RegisterRoutes registers the /usegraph endpoints on rg.
//
// Endpoints:
//
//	POST   /usegraph/scan                  - Build a graph (rate limited)
//	GET    /usegraph/graphs/:id            - Fetch a cached graph
//	GET    /usegraph/graphs/:id/export     - Render a cached graph (?format=gv|csv|json)
//	GET    /usegraph/events                - Websocket stream of scan events
//	GET    /usegraph/snapshots             - List snapshots (?root=&limit=)
//	GET    /usegraph/snapshots/diff        - Compare two snapshots (?base=&target=)
//	DELETE /usegraph/snapshots/:id         - Delete a snapshot
func (s *Server) RegisterRoutes(rg *gin.RouterGroup) {
	ug := rg.Group("/usegraph")
	{
		ug.POST("/scan", s.rateLimit(), s.HandleScan)
		ug.GET("/graphs/:id", s.HandleGetGraph)
		ug.GET("/graphs/:id/export", s.HandleExport)
		ug.GET("/events", s.HandleEvents)

		// diff must be registered before the :id wildcard
		ug.GET("/snapshots", s.HandleListSnapshots)
		ug.GET("/snapshots/diff", s.HandleDiffSnapshots)
		ug.DELETE("/snapshots/:id", s.HandleDeleteSnapshot)
	}
}

// rateLimit rejects requests with 429 once the token bucket is empty.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Allow() {
			s.logger.Warn("rate limit exceeded",
				slog.String("path", c.Request.URL.Path),
				slog.String("remote_addr", c.ClientIP()))
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "rate limit exceeded",
				Code:  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}

// getOrCreateRequestID returns the caller's request ID or a new one, and
// echoes it in the response.
func getOrCreateRequestID(c *gin.Context) string {
	id := c.GetHeader(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Header(requestIDHeader, id)
	return id
}
