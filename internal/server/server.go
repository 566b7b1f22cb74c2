// Package server exposes the platform's HTTP surface: session ingestion,
// query endpoints for sessions, opportunities, baselines and agent
// analytics, plus health and platform metrics.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bagula/platform/internal/config"
	"github.com/bagula/platform/internal/metrics"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Version is the platform version reported by /health.
const Version = "0.1.0"

// Opts holds configuration for the API server.
type Opts struct {
	DB     *gorm.DB
	Config *config.Provider
	Prices *metrics.PriceTable
	Out    io.Writer
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts Opts) error {
	if opts.DB == nil {
		return fmt.Errorf("server: db is required")
	}
	if opts.Config == nil {
		return fmt.Errorf("server: config is required")
	}

	router := NewRouter(opts)

	port := opts.Config.Snapshot().Server.Port
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API listening on :%d\n", port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// NewRouter builds the Gin router with all routes registered.
func NewRouter(opts Opts) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	registerRoutes(router, opts)
	return router
}
