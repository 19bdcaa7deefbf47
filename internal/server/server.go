package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bucketstream/config"
	"bucketstream/internal/handler"
	"bucketstream/internal/metrics"
	"bucketstream/internal/middleware"
	"bucketstream/internal/websocket"
	"bucketstream/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
	registry   *websocket.Registry
	onShutdown []func(context.Context) error
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Event     *handler.EventHandler
	Storage   *handler.StorageHandler
	Health    *handler.HealthHandler
	WebSocket *websocket.Handler
}

func New(cfg *config.Config, l *logger.Logger, registry *websocket.Registry) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine:   engine,
		config:   cfg,
		logger:   l,
		registry: registry,
	}
}

// Engine exposes the router, mainly for tests.
func (s *Server) Engine() *gin.Engine { return s.engine }

// OnShutdown registers fn to run after the HTTP server has stopped.
// Hooks run in registration order.
func (s *Server) OnShutdown(fn func(context.Context) error) {
	s.onShutdown = append(s.onShutdown, fn)
}

func (s *Server) SetupRoutes(handlers *Handlers) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/", handlers.Health.Root)
	s.engine.GET("/ping", handlers.Health.Ping)
	s.engine.GET("/health", handlers.Health.Health)
	s.engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	s.engine.POST("/webhook/lambda", handlers.Event.Ingest)
	s.engine.GET("/ws", handlers.WebSocket.Connect)

	events := s.engine.Group("/events")
	{
		events.GET("", handlers.Event.List)
		events.GET("/:event_id", handlers.Event.Get)
		events.POST("/:event_id/process", handlers.Storage.Process)
	}

	s3 := s.engine.Group("/s3")
	{
		s3.POST("/download", handlers.Storage.Download)
		s3.GET("/presigned-url/*key", handlers.Storage.PresignedURL)
	}

	files := s.engine.Group("/files")
	{
		files.GET("", handlers.Storage.ListFiles)
		files.GET("/:event_id", handlers.Storage.GetFile)
	}

	// Paths used by clients of the earlier dashboard API.
	legacy := s.engine.Group("/api")
	{
		legacy.GET("/db/files", handlers.Storage.ListFiles)
		legacy.GET("/db/file/:event_id", handlers.Storage.GetFile)
		legacy.POST("/s3/process/:event_id", handlers.Storage.Process)
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully: the HTTP
// server stops accepting requests, every subscriber connection is closed and
// the shutdown hooks run.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
			return err
		}
		return nil
	case <-ctx.Done():
	}

	if s.logger != nil {
		s.logger.Infof("Shutdown signal received, draining for up to %s", s.config.ShutdownTimeout)
	}
	return s.Shutdown(context.Background())
}

func (s *Server) Shutdown(ctx context.Context) error {
	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if err != nil && s.logger != nil {
		s.logger.Errorf("Error in the graceful shutdown of the server: %s", err)
	}

	// Upgraded connections are hijacked and not tracked by http.Server.
	if s.registry != nil {
		s.registry.CloseAll()
	}

	for _, fn := range s.onShutdown {
		if hookErr := fn(ctx); hookErr != nil {
			if s.logger != nil {
				s.logger.Errorf("Shutdown hook failed: %s", hookErr)
			}
			err = errors.Join(err, hookErr)
		}
	}

	if err == nil && s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}
	return err
}
