package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aescanero/dagrun/internal/application/workers"
	"github.com/aescanero/dagrun/pkg/domain"
	"github.com/aescanero/dagrun/pkg/ports"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// GraphRunner executes a graph synchronously under a given run id
type GraphRunner interface {
	RunWithID(ctx context.Context, runID string, spec *domain.GraphSpec, concurrency int) (*domain.RunResult, error)
}

// RunSubmitter queues a graph for asynchronous execution
type RunSubmitter interface {
	Submit(ctx context.Context, spec *domain.GraphSpec, concurrency int) (string, error)
}

// HealthReporter reports worker pool health
type HealthReporter interface {
	GetStatus() *workers.HealthStatus
}

// Server represents the HTTP API server
type Server struct {
	router             *gin.Engine
	server             *http.Server
	runner             GraphRunner
	submitter          RunSubmitter
	store              ports.RunStore
	health             HealthReporter
	defaultConcurrency int
	logger             *zap.Logger
}

// Config holds HTTP server configuration
type Config struct {
	Port               int
	Runner             GraphRunner
	Submitter          RunSubmitter
	Store              ports.RunStore
	Health             HealthReporter
	DefaultConcurrency int
	// MetricsHandler serves /metrics; defaults to the default Prometheus registry
	MetricsHandler http.Handler
	Logger         *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(cfg.Logger))
	router.Use(corsMiddleware())

	if cfg.DefaultConcurrency < 1 {
		cfg.DefaultConcurrency = 4
	}
	if cfg.MetricsHandler == nil {
		cfg.MetricsHandler = promhttp.Handler()
	}

	s := &Server{
		router:             router,
		runner:             cfg.Runner,
		submitter:          cfg.Submitter,
		store:              cfg.Store,
		health:             cfg.Health,
		defaultConcurrency: cfg.DefaultConcurrency,
		logger:             cfg.Logger,
	}

	s.setupRoutes(cfg.MetricsHandler)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// setupRoutes configures API routes
func (s *Server) setupRoutes(metrics http.Handler) {
	// Health check
	s.router.GET("/health", s.handleHealth)

	// Metrics
	s.router.GET("/metrics", gin.WrapH(metrics))

	// Synchronous execution
	s.router.POST("/graph/execute", s.handleExecuteGraph)
	s.router.GET("/runs/:id", s.handleGetRun)

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/runs", s.handleSubmitRun)
		v1.GET("/runs", s.handleListRuns)
		v1.GET("/runs/:id", s.handleGetRun)
		v1.DELETE("/runs/:id", s.handleDeleteRun)
	}
}

// RunStreamer streams the events of one run
type RunStreamer interface {
	HandleRunStream(*gin.Context)
}

// SetupWebSocket adds the run event stream to the server
func (s *Server) SetupWebSocket(handler RunStreamer) {
	s.router.GET("/api/v1/runs/:id/ws", handler.HandleRunStream)
}

// Handler returns the server's HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("HTTP server shut down complete")
	return nil
}
