package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"helmet-guard-go/internal/config"
)

// Setup configures the global zerolog logger: console output in development,
// JSON elsewhere, plus optional Logdy and rotating file tees.
func Setup(cfg *config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339

	var console io.Writer = os.Stderr
	if cfg.Environment == "development" {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	writers := []io.Writer{console}

	var logdyURL string
	if cfg.LogdyEnabled {
		w, url := StartLogdy(cfg)
		writers = append(writers, w)
		logdyURL = url
	}

	if cfg.LogFile != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		})
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		log.Warn().Str("level", cfg.LogLevel).Msg("Invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if logdyURL != "" {
		log.Info().Str("url", logdyURL).Msg("Logdy UI available")
	}
	if cfg.LogFile != "" {
		log.Info().Str("file", cfg.LogFile).Msg("Logging to rotating file")
	}
}
