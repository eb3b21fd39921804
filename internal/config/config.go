package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Application
	Version     string
	Environment string
	WorkerID    string
	Port        int
	LogLevel    string
	LogFile     string // empty = stderr only

	// Logdy (lightweight web log viewer)
	LogdyEnabled bool
	LogdyHost    string
	LogdyPort    int

	// Detection
	DetectorBackend string // "onnx" or "grpc"
	ModelPath       string
	ModelClasses    []string
	ModelInputSize  int
	NMSThreshold    float64
	AIGRPCURL       string
	AITimeout       time.Duration

	// Annotation
	NoHelmetClasses  []string
	DefaultThreshold float64
	ShowBanner       bool

	// Violation log
	ViolationLogBackend string // "xlsx" or "sqlite"
	ViolationLogPath    string
	LogLiveViolations   bool

	// Voice alerts
	VoiceEnabled  bool
	VoiceMessage  string
	VoiceLanguage string
	VoiceCooldown time.Duration
	TTSBaseURL    string
	TTSTimeout    time.Duration

	// NATS (violation events)
	NatsEnabled        bool
	NatsURL            string
	NatsConnectTimeout time.Duration
	NatsReconnectWait  time.Duration
	NatsMaxReconnects  int
	AlertsSubject      string
	AlertsCooldown     time.Duration

	// Capture
	WebcamDevice   string
	UploadDir      string
	MaxUploadBytes int64
	MaxFPS         int

	// Stream Output
	OutputQuality int

	// Swagger Configuration
	SwaggerHost string

	// Graceful Shutdown
	ShutdownTimeout time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file found or error loading .env file, using environment variables and defaults")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	return &Config{
		// Application
		Version:     getEnv("VERSION", "1.0.0"),
		Environment: getEnv("ENVIRONMENT", "development"),
		WorkerID:    getEnv("WORKER_ID", "helmet-worker-1"),
		Port:        getEnvInt("PORT", 8000),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFile:     getEnv("LOG_FILE", ""),

		// Logdy
		LogdyEnabled: getEnvBool("LOGDY_ENABLED", false),
		LogdyHost:    getEnv("LOGDY_HOST", "localhost"),
		LogdyPort:    getEnvInt("LOGDY_PORT", 8080),

		// Detection
		DetectorBackend: getEnv("DETECTOR_BACKEND", "onnx"),
		ModelPath:       getEnv("MODEL_PATH", "models/helmet.onnx"),
		ModelClasses:    getEnvList("MODEL_CLASSES", []string{"head", "helmet", "person"}),
		ModelInputSize:  getEnvInt("MODEL_INPUT_SIZE", 640),
		NMSThreshold:    getEnvFloat("NMS_THRESHOLD", 0.45),
		AIGRPCURL:       getEnv("AI_GRPC_URL", "localhost:50052"),
		AITimeout:       getEnvDuration("AI_TIMEOUT", 5*time.Second),

		// Annotation
		NoHelmetClasses:  getEnvList("NO_HELMET_CLASSES", []string{"head"}),
		DefaultThreshold: getEnvFloat("DEFAULT_THRESHOLD", 0.5),
		ShowBanner:       getEnvBool("SHOW_BANNER", false),

		// Violation log
		ViolationLogBackend: getEnv("VIOLATION_LOG_BACKEND", "xlsx"),
		ViolationLogPath:    getEnv("VIOLATION_LOG_PATH", "helmet_violations.xlsx"),
		LogLiveViolations:   getEnvBool("LOG_LIVE_VIOLATIONS", true),

		// Voice alerts
		VoiceEnabled:  getEnvBool("VOICE_ENABLED", true),
		VoiceMessage:  getEnv("VOICE_MESSAGE", "Harap gunakan helm untuk keselamatan Anda"),
		VoiceLanguage: getEnv("VOICE_LANGUAGE", "id"),
		VoiceCooldown: getEnvDuration("VOICE_COOLDOWN", 5*time.Second),
		TTSBaseURL:    getEnv("TTS_BASE_URL", "https://translate.google.com/translate_tts"),
		TTSTimeout:    getEnvDuration("TTS_TIMEOUT", 10*time.Second),

		// NATS
		NatsEnabled:        getEnvBool("NATS_ENABLED", false),
		NatsURL:            getNatsURL(),
		NatsConnectTimeout: getEnvDuration("NATS_CONNECT_TIMEOUT", 10*time.Second),
		NatsReconnectWait:  getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		NatsMaxReconnects:  getEnvInt("NATS_MAX_RECONNECTS", -1), // -1 = unlimited
		AlertsSubject:      getEnv("ALERTS_SUBJECT", "helmet.violations"),
		AlertsCooldown:     getEnvDuration("ALERTS_COOLDOWN", 0),

		// Capture
		WebcamDevice:   getEnv("WEBCAM_DEVICE", "0"),
		UploadDir:      getEnv("UPLOAD_DIR", os.TempDir()),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_MB", 512)) * 1024 * 1024,
		MaxFPS:         getEnvInt("MAX_FPS", 30),

		// Stream Output
		OutputQuality: getEnvInt("OUTPUT_QUALITY", 85),

		// Swagger
		SwaggerHost: getEnv("SWAGGER_HOST", "localhost:8000"),

		// Graceful Shutdown
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvList parses a comma separated list, dropping blank entries
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// Helper functions for Docker environment detection
func isRunningInDocker() bool {
	if os.Getenv("DOCKER_CONTAINER") == "true" {
		return true
	}

	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}

	return false
}

// getNatsURL returns the appropriate NATS URL based on environment
func getNatsURL() string {
	if envURL := os.Getenv("NATS_URL"); envURL != "" {
		return envURL
	}

	// If running in Docker, use service name; otherwise use localhost
	if isRunningInDocker() {
		return "nats://nats:4222"
	}

	return "nats://localhost:4222"
}
