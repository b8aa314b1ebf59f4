// Package api exposes the aggregate views and the row import over HTTP.
package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"salesetl/internal/aggregate"
	"salesetl/internal/importer"
)

// DefaultMaxImportRows bounds the rows accepted by one import request.
const DefaultMaxImportRows = 50_000

// Server wires the HTTP handlers to their services.
type Server struct {
	Agg *aggregate.Service

	// Importer is the template for import requests. Each request works on a
	// copy, so per-request overrides never leak between calls. Nil disables
	// the import endpoint.
	Importer *importer.Importer

	// Limiter throttles every route except the health probes. Nil disables
	// limiting.
	Limiter *rate.Limiter

	// Timeout bounds each request's context; <= 0 means none.
	Timeout time.Duration

	MaxImportRows int // <= 0 means DefaultMaxImportRows
}

// NewLimiter builds a token bucket of burst tokens refilled at rps per
// second. rps <= 0 returns nil.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// Handler builds the gin engine.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLog())
	_ = r.SetTrustedProxies(nil)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", s.ready)

	sales := r.Group("/api/sales")
	sales.Use(rateLimit(s.Limiter), deadline(s.Timeout))
	sales.GET("/summary", s.summary)
	sales.GET("/counts", s.counts)
	sales.POST("/import", s.importRows)
	return r
}

// ListenAndServe is a convenience for commands; it blocks until the server
// stops.
func (s *Server) ListenAndServe(addr string) error {
	srv := s.HTTPServer(addr)
	log.Printf("api: listening addr=%s", addr)
	return srv.ListenAndServe()
}

// HTTPServer returns an http.Server for addr with conservative timeouts.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (s *Server) maxImportRows() int {
	if s.MaxImportRows <= 0 {
		return DefaultMaxImportRows
	}
	return s.MaxImportRows
}
