package logging

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// gin context keys read by the request log helpers
const (
	RequestIDKey = "request_id"
	StartTimeKey = "start_time"
	SessionIDKey = "session_id"
)

// taggedKeys are copied onto every request log event when present
var taggedKeys = []string{RequestIDKey, SessionIDKey}

// SetSession tags the request with the detection session it touches
func SetSession(c *gin.Context, sessionID string) {
	c.Set(SessionIDKey, sessionID)
}

func withGinContext(c *gin.Context, e *zerolog.Event) *zerolog.Event {
	if c == nil {
		return e
	}
	for _, key := range taggedKeys {
		if s := c.GetString(key); s != "" {
			e.Str(key, s)
		}
	}
	if t := c.GetTime(StartTimeKey); !t.IsZero() {
		e.Dur("duration", time.Since(t))
	}
	return e
}

func Info(c *gin.Context) *zerolog.Event  { return withGinContext(c, log.Info()) }
func Debug(c *gin.Context) *zerolog.Event { return withGinContext(c, log.Debug()) }
func Warn(c *gin.Context) *zerolog.Event  { return withGinContext(c, log.Warn()) }
func Error(c *gin.Context) *zerolog.Event { return withGinContext(c, log.Error()) }
