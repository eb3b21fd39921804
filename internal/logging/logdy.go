package logging

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/logdyhq/logdy-core/logdy"

	"helmet-guard-go/internal/config"
)

// logdyWriter forwards each zerolog line to the embedded Logdy UI
type logdyWriter struct {
	logger logdy.Logdy
}

func (w *logdyWriter) Write(p []byte) (int, error) {
	line := bytes.TrimRight(p, "\n")
	if len(line) > 0 {
		w.logger.LogString(string(line))
	}
	return len(p), nil
}

// StartLogdy starts the embedded Logdy web UI and returns a writer to tee
// logs into, plus the UI address
func StartLogdy(cfg *config.Config) (io.Writer, string) {
	port := strconv.Itoa(cfg.LogdyPort)
	ld := logdy.InitializeLogdy(logdy.Config{
		ServerIp:   cfg.LogdyHost,
		ServerPort: port,
	}, nil)

	return &logdyWriter{logger: ld}, fmt.Sprintf("http://%s:%s", cfg.LogdyHost, port)
}
