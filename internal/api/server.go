package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/framepulse/framepulse-core/internal/api/handlers"
	"github.com/framepulse/framepulse-core/internal/api/middleware"
	"github.com/framepulse/framepulse-core/internal/config"
	"github.com/framepulse/framepulse-core/internal/scheduler"
	"github.com/framepulse/framepulse-core/internal/services"
	"github.com/framepulse/framepulse-core/internal/stream"
	"github.com/framepulse/framepulse-core/pkg/logger"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Server wires the HTTP surface over the in-process services.
type Server struct {
	config     *config.Config
	logger     logger.Logger
	diag       *services.DiagnosisService
	video      *services.VideoService
	streams    *stream.Manager
	sched      *scheduler.Scheduler
	router     *gin.Engine
	httpServer *http.Server
}

func NewServer(
	cfg *config.Config,
	log logger.Logger,
	diag *services.DiagnosisService,
	video *services.VideoService,
	streams *stream.Manager,
	sched *scheduler.Scheduler,
) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		config:  cfg,
		logger:  log,
		diag:    diag,
		video:   video,
		streams: streams,
		sched:   sched,
		router:  gin.New(),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.CORSMiddleware(s.config.CORS))
	s.router.Use(middleware.RequestLogger(s.logger))
	s.router.Use(middleware.MetricsMiddleware())
	s.router.Use(middleware.ErrorHandler(s.logger))
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(Version, s.logger)
	diagnoseHandler := handlers.NewDiagnoseHandler(s.diag, s.logger)
	videoHandler := handlers.NewVideoHandler(s.video, s.logger)
	streamHandler := handlers.NewStreamHandler(s.streams, s.logger)
	streamWSHandler := handlers.NewStreamWSHandler(s.streams, s.logger)

	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")

	v1.POST("/diagnose/image", diagnoseHandler.DiagnoseImage)
	v1.POST("/diagnose/batch", diagnoseHandler.DiagnoseBatch)
	v1.POST("/diagnose/video", videoHandler.DiagnoseVideo)

	v1.GET("/detectors", diagnoseHandler.ListDetectors)
	v1.GET("/detectors/video", videoHandler.ListVideoDetectors)

	v1.POST("/streams", streamHandler.StartStream)
	v1.GET("/streams", streamHandler.ListStreams)
	v1.GET("/streams/:id", streamHandler.GetStream)
	v1.DELETE("/streams/:id", streamHandler.StopStream)
	v1.GET("/streams/:id/results", streamHandler.GetStreamResults)
	v1.GET("/ws/streams/:id", streamWSHandler.Subscribe)

	if s.sched != nil {
		taskHandler := handlers.NewTaskHandler(s.sched, s.logger)
		tasks := v1.Group("/tasks")
		tasks.POST("", taskHandler.CreateTask)
		tasks.GET("", taskHandler.ListTasks)
		tasks.GET("/:id", taskHandler.GetTask)
		tasks.PUT("/:id", taskHandler.UpdateTask)
		tasks.DELETE("/:id", taskHandler.DeleteTask)
		tasks.POST("/:id/enable", taskHandler.EnableTask)
		tasks.POST("/:id/disable", taskHandler.DisableTask)
		tasks.POST("/:id/run", taskHandler.RunTask)
		tasks.GET("/:id/executions", taskHandler.ListExecutions)
	}
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Start serves until the listener fails.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.logger.Info("HTTP server listening", "port", s.config.Port, "environment", s.config.Environment)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
