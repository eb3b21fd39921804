package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"helmet-guard-go/internal/api"
	"helmet-guard-go/internal/config"
	"helmet-guard-go/internal/logging"
)

// @title Helmet Guard API
// @version 1.0.0
// @description Helmet violation detection worker: image, video and webcam detection with violation logging and voice alerts
// @BasePath /
func main() {
	cfg := config.Load()
	logging.Setup(cfg)

	log.Info().
		Str("worker_id", cfg.WorkerID).
		Str("version", cfg.Version).
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Str("detector", cfg.DetectorBackend).
		Str("violation_log", cfg.ViolationLogPath).
		Msg("Starting Helmet Guard worker")

	server, err := api.NewServer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	} else {
		log.Info().Msg("Server shutdown complete")
	}
}
