package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/AgentOS/guesthost/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/api/ws"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/gateway"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/guest"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/surface"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/providers/headless"
)

// Server wraps the HTTP server and the guest host it serves
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	guests     *guest.Manager
	gateway    *gateway.Gateway
	factory    *headless.Factory
	logger     *logging.Logger
	config     *config.Config
	metrics    *monitoring.Metrics
	tracer     *tracing.Tracer
	stop       chan struct{}
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Info("Initializing guest host",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
	)

	// Metrics first, other components record into them
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)
	tracer := tracing.New("guesthost", logger.Logger)
	stop := make(chan struct{})
	go metrics.RunUptime(stop)

	caps, err := gateway.LoadCapabilities(cfg.Guest.CapabilitiesFile)
	if err != nil {
		close(stop)
		tracer.Close()
		return nil, err
	}
	if cfg.Guest.CapabilitiesFile != "" {
		logger.Info("Loaded capability overrides", zap.String("file", cfg.Guest.CapabilitiesFile))
	}

	// One id space for guests and embedders
	seq := surface.NewSequence()
	factory := headless.NewFactory(seq, headless.Config{
		UserAgent:        cfg.Guest.UserAgent,
		CaptureWidth:     cfg.Guest.CaptureWidth,
		CaptureHeight:    cfg.Guest.CaptureHeight,
		LoadTimeout:      cfg.Guest.LoadTimeout,
		ScriptTimeout:    cfg.Guest.ScriptTimeout,
		AllowedHosts:     cfg.Guest.AllowedHosts,
		BreakerThreshold: cfg.Guest.BreakerThreshold,
		BreakerCooldown:  cfg.Guest.BreakerCooldown,
	}, logger.Logger)

	guests := guest.NewManager(guest.Options{
		Factory: factory,
		Binding: headless.NewBinding(logger.Logger),
		Events:  caps.Events(),
		Logger:  logger.Logger,
		Metrics: metrics,
	})
	gw := gateway.New(guests, caps, logger.Logger, metrics)

	embedderPrefs := guest.ParseFeatures(cfg.Guest.EmbedderPreferences)
	wsHandler := ws.NewHandler(gw, ws.Options{
		Sequence:          seq,
		Preferences:       embedderPrefs,
		ReadLimit:         cfg.WebSocket.ReadLimit,
		MessagesPerSecond: cfg.WebSocket.MessagesPerSecond,
		Burst:             cfg.WebSocket.Burst,
		Logger:            logger.Logger,
		Metrics:           metrics,
		Tracer:            tracer,
	})

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(tracing.Middleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	apihttp.NewHandlers(guests, factory.Sessions(), registry).Register(router)
	router.GET("/ws", wsHandler.HandleConnection)

	logger.Info("Server initialized",
		zap.Int("forwarded_events", len(caps.Events())),
		zap.Any("embedder_preferences", embedderPrefs),
	)

	return &Server{
		router: router,
		httpServer: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		guests:  guests,
		gateway: gw,
		factory: factory,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
		tracer:  tracer,
		stop:    stop,
	}, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Guests returns the guest registry
func (s *Server) Guests() *guest.Manager {
	return s.guests
}

// Run serves HTTP until Close is called
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close gracefully shuts down the server
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	close(s.stop)

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		s.logger.Error("HTTP shutdown failed", zap.Error(err))
	}
	stats := s.guests.Stats()
	s.logger.Info("Server stopped",
		zap.Int("guests", stats.Guests),
		zap.Int("watched_embedders", stats.WatchedEmbedders),
	)

	s.tracer.Close()
	_ = s.logger.Sync()
	return err
}
