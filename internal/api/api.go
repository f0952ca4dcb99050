// Package api serves the read-only HTTP status endpoints of the DNS server.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/haukened/simpledns/internal/dns/common/log"
	"github.com/haukened/simpledns/internal/dns/services/stats"
)

// RecordSummary describes the local record table.
type RecordSummary interface {
	Zones() []string
	Count() int
}

// Options configures the status server.
type Options struct {
	Addr    string
	Stats   *stats.Counters
	Records RecordSummary
	Logger  log.Logger
}

// StatusResponse is returned by /health.
type StatusResponse struct {
	Status string `json:"status"`
}

// StatsResponse is returned by /stats.
type StatsResponse struct {
	stats.Snapshot
	Uptime     string `json:"uptime"`
	GoRoutines int    `json:"goroutines"`
}

// RecordsResponse is returned by /records.
type RecordsResponse struct {
	Count int      `json:"count"`
	Zones []string `json:"zones"`
}

// Server is the status HTTP server.
type Server struct {
	opts       Options
	engine     *gin.Engine
	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
	done     chan struct{}
}

// New builds the server and its routes; nothing is bound until Start.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(opts.Logger))

	s := &Server{opts: opts, engine: engine}
	engine.GET("/health", s.handleHealth)
	engine.GET("/stats", s.handleStats)
	engine.GET("/records", s.handleRecords)

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Addr returns the bound address once started, the configured one before.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.Addr
}

// Start binds the listener and serves in the background. Bind errors are returned.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind status API on %s: %w", s.opts.Addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.opts.Logger.Error(map[string]any{"error": err}, "Status API stopped unexpectedly")
		}
	}()

	s.opts.Logger.Info(map[string]any{"address": ln.Addr().String()}, "Status API started")
	return nil
}

// Shutdown stops accepting requests and waits for active ones within ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	err := s.httpServer.Shutdown(ctx)
	<-done
	return err
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{Status: "ok"})
}

func (s *Server) handleStats(c *gin.Context) {
	snap := s.opts.Stats.Snapshot()
	c.JSON(http.StatusOK, StatsResponse{
		Snapshot:   snap,
		Uptime:     snap.Uptime.Round(time.Second).String(),
		GoRoutines: runtime.NumGoroutine(),
	})
}

func (s *Server) handleRecords(c *gin.Context) {
	resp := RecordsResponse{Zones: []string{}}
	if s.opts.Records != nil {
		resp.Count = s.opts.Records.Count()
		if zones := s.opts.Records.Zones(); zones != nil {
			resp.Zones = zones
		}
	}
	c.JSON(http.StatusOK, resp)
}

func requestLogger(logger log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		logger.Debug(map[string]any{
			"method":     method,
			"path":       path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		}, "api request")
	}
}
