// Package server exposes the scanning engine over a JSON HTTP API for
// the dashboard and manual triggers.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/AnbuPalani1991/alltimehigh-scanner/internal/model"
	"github.com/AnbuPalani1991/alltimehigh-scanner/internal/scan"
	"github.com/AnbuPalani1991/alltimehigh-scanner/internal/store"
)

// SymbolCache reports the size of the cached symbol universe.
type SymbolCache interface {
	CachedCount() int
}

// Server wires the engine's read and trigger surfaces to HTTP.
type Server struct {
	ctx         context.Context
	coordinator *scan.Coordinator
	results     *store.Store
	symbols     SymbolCache
	logger      *zap.Logger
	httpSrv     *http.Server
}

// New creates the server listening on the given port. Scans triggered
// over the API run under ctx, so process shutdown cancels them the same
// way it cancels scheduled scans.
func New(ctx context.Context, port string, coordinator *scan.Coordinator, results *store.Store,
	symbols SymbolCache, logger *zap.Logger) *Server {
	s := &Server{
		ctx:         ctx,
		coordinator: coordinator,
		results:     results,
		symbols:     symbols,
		logger:      logger,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.handleHealth)
	api := router.Group("/api")
	{
		api.GET("/results", s.handleResults)
		api.GET("/status", s.handleStatus)
		api.POST("/scan", s.handleTriggerScan)
		api.GET("/symbols/count", s.handleSymbolCount)
	}

	s.httpSrv = &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.httpSrv.Addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("http server failed", zap.Error(err))
		}
	}()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// handleResults returns the latest published snapshot. Never blocks on an
// in-progress scan; before the first completed scan it returns an empty shell.
func (s *Server) handleResults(c *gin.Context) {
	snap := s.results.Latest()
	if snap == nil {
		c.JSON(http.StatusOK, gin.H{
			"schema_version": model.SnapshotSchemaVersion,
			"total_symbols":  0,
			"ath_count":      0,
			"ath_stocks":     []model.ScanRecord{},
		})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleStatus(c *gin.Context) {
	completed, total := s.coordinator.Progress()
	c.JSON(http.StatusOK, gin.H{
		"running":   s.coordinator.Running(),
		"completed": completed,
		"total":     total,
	})
}

// handleTriggerScan starts a scan in the background. A scan already in
// flight yields 409; the coordinator enforces at-most-one regardless.
func (s *Server) handleTriggerScan(c *gin.Context) {
	if s.coordinator.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": "scan already running"})
		return
	}
	go func() {
		if _, err := s.coordinator.RunScan(s.ctx); err != nil &&
			err != scan.ErrAlreadyRunning {
			s.logger.Error("triggered scan failed", zap.Error(err))
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"message": "scan started"})
}

func (s *Server) handleSymbolCount(c *gin.Context) {
	count := s.symbols.CachedCount()
	c.JSON(http.StatusOK, gin.H{"count": count, "cached": count > 0})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
