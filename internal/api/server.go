package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"helmet-guard-go/internal/api/handlers"
	"helmet-guard-go/internal/config"
	"helmet-guard-go/internal/services"
)

type Server struct {
	config    *config.Config
	router    *gin.Engine
	server    *http.Server
	container *services.ServiceContainer

	healthHandler    *handlers.HealthHandler
	detectHandler    *handlers.DetectHandler
	sessionHandler   *handlers.SessionHandler
	violationHandler *handlers.ViolationHandler
}

func NewServer(cfg *config.Config) (*Server, error) {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	container, err := services.NewServiceContainer(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	var checker handlers.HealthChecker
	if hc, ok := container.Detector.(handlers.HealthChecker); ok {
		checker = hc
	}

	s := &Server{
		config:           cfg,
		router:           gin.New(),
		container:        container,
		healthHandler:    handlers.NewHealthHandler(cfg, container.Detector.Backend(), checker, container.Metrics),
		detectHandler:    handlers.NewDetectHandler(cfg, container.Sessions),
		sessionHandler:   handlers.NewSessionHandler(cfg, container.Sessions, container.Publisher),
		violationHandler: handlers.NewViolationHandler(container.ViolationLog),
	}

	s.setupMiddleware()
	s.setupRoutes()
	s.setupSwagger()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s.router,
	}
	return s, nil
}

func (s *Server) Start() error {
	log.Info().Int("port", s.config.Port).Msg("Starting Helmet Guard API")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, then stops sessions and services
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Stopping Helmet Guard API")
	httpErr := s.server.Shutdown(ctx)
	return errors.Join(httpErr, s.container.Shutdown(ctx))
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler {
	return s.router
}
