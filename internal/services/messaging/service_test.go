package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helmet-guard-go/internal/config"
	"helmet-guard-go/internal/models"
)

func TestNewServiceUnreachable(t *testing.T) {
	cfg := &config.Config{
		WorkerID:           "w1",
		NatsURL:            "nats://127.0.0.1:1",
		NatsConnectTimeout: 200 * time.Millisecond,
		NatsReconnectWait:  10 * time.Millisecond,
		NatsMaxReconnects:  0,
		AlertsSubject:      "helmet.violations",
	}

	svc, err := NewService(cfg)
	require.Error(t, err)
	assert.Nil(t, svc)
	assert.Contains(t, err.Error(), "nats://127.0.0.1:1")
}

func TestDisconnectedService(t *testing.T) {
	svc := &Service{subject: "helmet.violations", closed: make(chan struct{})}

	assert.False(t, svc.IsConnected())
	assert.ErrorIs(t, svc.PublishViolation(models.ViolationEvent{ViolationCount: 1}), ErrNotConnected)
	assert.NoError(t, svc.Shutdown(context.Background()))
}
