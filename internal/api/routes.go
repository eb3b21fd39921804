package api

import (
	"github.com/gin-gonic/gin"

	"helmet-guard-go/internal/api/handlers"
	"helmet-guard-go/internal/api/middleware"
)

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RequestContext())
	s.router.Use(middleware.AccessLog())
	s.router.Use(middleware.CORS())
}

func (s *Server) setupRoutes() {
	s.router.GET("/", handlers.Dashboard)
	s.router.GET("/health", s.healthHandler.HealthCheck)
	s.router.GET("/info", s.healthHandler.Info)
	s.router.GET("/metrics", gin.WrapH(s.container.Metrics.Handler()))

	upload := middleware.MaxBodySize(s.config.MaxUploadBytes)
	s.router.POST("/detect/image", upload, s.detectHandler.DetectImage)

	sessions := s.router.Group("/sessions")
	{
		sessions.GET("", s.sessionHandler.ListSessions)
		sessions.POST("/video", upload, s.sessionHandler.StartVideo)
		sessions.POST("/webcam", s.sessionHandler.StartWebcam)
		sessions.GET("/:id", s.sessionHandler.GetSession)
		sessions.DELETE("/:id", s.sessionHandler.StopSession)
		sessions.GET("/:id/stream", s.sessionHandler.StreamSession)
	}

	s.router.GET("/ws", s.sessionHandler.Events)
	s.router.GET("/violations", s.violationHandler.ListViolations)
}
