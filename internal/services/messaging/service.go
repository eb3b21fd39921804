package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"helmet-guard-go/internal/config"
	"helmet-guard-go/internal/logging"
	"helmet-guard-go/internal/models"
)

// Message headers attached to every event
const (
	HeaderWorkerID    = "Worker-ID"
	HeaderContentType = "Content-Type"
	HeaderSessionID   = "Session-ID"
)

var ErrNotConnected = errors.New("nats connection is not available")

// Service publishes JSON-encoded violation events over NATS
type Service struct {
	conn     *nats.Conn
	workerID string
	subject  string
	closed   chan struct{}
	logger   zerolog.Logger
}

func NewService(cfg *config.Config) (*Service, error) {
	logger := logging.NewServiceLogger(cfg, "messaging")
	closed := make(chan struct{})

	conn, err := nats.Connect(cfg.NatsURL,
		nats.Name(cfg.WorkerID),
		nats.Timeout(cfg.NatsConnectTimeout),
		nats.ReconnectWait(cfg.NatsReconnectWait),
		nats.MaxReconnects(cfg.NatsMaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("Event bus disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("Event bus reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) { close(closed) }),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", cfg.NatsURL, err)
	}

	logger.Info().Str("url", cfg.NatsURL).Str("subject", cfg.AlertsSubject).Msg("Violation events enabled")

	return &Service{
		conn:     conn,
		workerID: cfg.WorkerID,
		subject:  cfg.AlertsSubject,
		closed:   closed,
		logger:   logger,
	}, nil
}

// Publish encodes data as JSON and sends it on subject with the worker headers.
// Violation events also carry their session id as a header.
func (s *Service) Publish(subject string, data interface{}) error {
	if s.conn == nil || s.conn.IsClosed() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = payload
	msg.Header.Set(HeaderWorkerID, s.workerID)
	msg.Header.Set(HeaderContentType, "application/json")
	if ev, ok := data.(models.ViolationEvent); ok && ev.SessionID != "" {
		msg.Header.Set(HeaderSessionID, ev.SessionID)
	}
	return s.conn.PublishMsg(msg)
}

// PublishViolation sends ev on the configured alerts subject
func (s *Service) PublishViolation(ev models.ViolationEvent) error {
	return s.Publish(s.subject, ev)
}

func (s *Service) IsConnected() bool {
	return s.conn != nil && s.conn.IsConnected()
}

// Shutdown drains pending events and waits for the connection to close or
// ctx to expire, whichever comes first
func (s *Service) Shutdown(ctx context.Context) error {
	if s.conn == nil || s.conn.IsClosed() {
		return nil
	}
	if err := s.conn.Drain(); err != nil {
		s.logger.Warn().Err(err).Msg("Drain failed, closing event bus connection")
		s.conn.Close()
		return nil
	}
	select {
	case <-s.closed:
		return nil
	case <-ctx.Done():
		s.conn.Close()
		return ctx.Err()
	}
}
