package server

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/ipc/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/analyzer"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/infrastructure/tracing"
)

const spanBuffer = 1024

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *nethttp.Server
	svc      *ipc.Service
	analyzer *analyzer.PerformanceAnalyzer
	tracer   *tracing.Tracer
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
	registry *prometheus.Registry
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Logger())
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Info("Initializing IPC server",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.String("default_transport", cfg.IPC.DefaultTransport),
	)

	// Metrics first, the service and middleware record into them
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)

	tracer := tracing.New("ipc", logger.Logger, spanBuffer)

	svc, err := ipc.New(cfg.IPC, logger)
	if err != nil {
		tracer.Close()
		return nil, fmt.Errorf("failed to create ipc service: %w", err)
	}
	svc = svc.WithMetrics(metrics)

	perf := analyzer.New(cfg.Analyzer.MaxSamples)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.Recovery(logger))
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}
	router.Use(middleware.RequestLogger(logger))

	handlers := http.NewHandlers(svc, perf, http.NewHandlerMetrics(metrics))
	aggregator := http.NewMetricsAggregator(metrics, svc, perf)
	registerRoutes(router, handlers, aggregator, registry)

	logger.Info("Server initialized successfully",
		zap.String("service_id", svc.ServiceID().String()))

	return &Server{
		router:   router,
		svc:      svc,
		analyzer: perf,
		tracer:   tracer,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
		registry: registry,
	}, nil
}

func registerRoutes(router *gin.Engine, h *http.Handlers, agg *http.MetricsAggregator, g prometheus.Gatherer) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/stats", h.Stats)

	channels := router.Group("/channels")
	channels.GET("", h.ListChannels)
	channels.POST("", h.CreateChannel)
	channels.DELETE("/:id", h.DestroyChannel)
	channels.GET("/:id/stats", h.ChannelStats)
	channels.POST("/:id/messages", h.SendMessage)
	channels.GET("/:id/messages", h.ReceiveMessage)
	channels.POST("/:id/batch", h.SendBatch)
	channels.GET("/:id/batch", h.ReceiveBatch)

	router.GET("/analyzer", h.Analyzer)
	router.GET("/analyzer/report", agg.GetPerformanceReport)

	router.GET("/metrics", gin.WrapH(monitoring.Handler(g)))
	router.GET("/metrics/json", agg.GetAggregatedMetrics)
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() nethttp.Handler {
	return s.router
}

// Service returns the IPC service the server exposes
func (s *Server) Service() *ipc.Service {
	return s.svc
}

// Run starts the HTTP server and blocks until it stops. A server stopped
// by Shutdown returns nil.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.http = &nethttp.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests, closes every channel and flushes
// the tracer and logger
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if s.http != nil {
		timeout := time.Duration(s.config.Server.ShutdownSeconds) * time.Second
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := s.http.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP shutdown failed", zap.Error(err))
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}

	for _, info := range s.svc.ListChannels() {
		if err := s.svc.DestroyChannel(info.ID); err != nil {
			s.logger.Warn("Failed to destroy channel",
				zap.Uint64("channel_id", info.ID), zap.Error(err))
		}
	}

	s.tracer.Close()
	_ = s.logger.Sync()

	return errors.Join(errs...)
}
