package services

import (
	"context"
	"errors"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"

	"helmet-guard-go/internal/config"
	"helmet-guard-go/internal/metrics"
	"helmet-guard-go/internal/models"
	"helmet-guard-go/internal/services/detection"
	"helmet-guard-go/internal/services/frameprocessing"
	"helmet-guard-go/internal/services/messaging"
	"helmet-guard-go/internal/services/postprocessing"
	"helmet-guard-go/internal/services/publisher"
	"helmet-guard-go/internal/services/streamcapture"
	"helmet-guard-go/internal/services/violationlog"
	"helmet-guard-go/internal/services/voice"
)

// ServiceContainer holds all services
type ServiceContainer struct {
	Config         *config.Config
	Metrics        *metrics.Metrics
	Detector       detection.Detector
	ViolationLog   *violationlog.Logger
	Throttle       *voice.Throttle
	Messaging      *messaging.Service
	PostProcessing *postprocessing.Service
	Pipeline       *frameprocessing.Pipeline
	Publisher      *publisher.Service
	Sessions       *streamcapture.Manager
}

// NewServiceContainer creates a new service container
func NewServiceContainer(cfg *config.Config) (*ServiceContainer, error) {
	sc := &ServiceContainer{
		Config:  cfg,
		Metrics: metrics.New(),
	}
	clk := clock.New()

	detector, err := detection.New(cfg)
	if err != nil {
		return nil, err
	}
	sc.Detector = detector

	store, err := violationlog.Open(cfg)
	if err != nil {
		detector.Close()
		return nil, err
	}
	sc.ViolationLog = violationlog.NewLogger(store, clk)

	var throttle postprocessing.AlertThrottle
	if cfg.VoiceEnabled {
		sc.Throttle = voice.NewThrottle(
			voice.NewGoogleTTS(cfg.TTSBaseURL, cfg.TTSTimeout),
			clk, cfg.VoiceCooldown, cfg.VoiceMessage, cfg.VoiceLanguage,
		)
		throttle = sc.Throttle
	}

	opts := []postprocessing.Option{
		postprocessing.WithMetrics(sc.Metrics),
		postprocessing.WithClock(clk),
	}
	if cfg.NatsEnabled {
		msg, err := messaging.NewService(cfg)
		if err != nil {
			// events are optional; the worker runs without the bus
			log.Warn().Err(err).Str("url", cfg.NatsURL).Msg("NATS unavailable, violation events disabled")
		} else {
			sc.Messaging = msg
			opts = append(opts, postprocessing.WithPublisher(msg))
		}
	}

	post, err := postprocessing.NewService(cfg, sc.ViolationLog, throttle, opts...)
	if err != nil {
		sc.Shutdown(context.Background())
		return nil, err
	}
	sc.PostProcessing = post

	annotator := frameprocessing.NewAnnotator(models.NewLabelSet(cfg.NoHelmetClasses...), cfg.ShowBanner)
	sc.Pipeline = frameprocessing.NewPipeline(detector, annotator, post, sc.Metrics)

	sc.Publisher = publisher.NewService(cfg)
	sc.Sessions = streamcapture.NewManager(cfg, sc.Pipeline, sc.Publisher, sc.Metrics,
		streamcapture.WithManagerClock(clk),
		streamcapture.WithFinishHook(func(info models.SessionInfo) {
			post.Forget(info.ID)
			if info.Mode == models.ModeImage {
				sc.Publisher.Forget(info.ID)
			}
		}),
		streamcapture.WithEvictHook(sc.Publisher.Forget),
	)

	log.Info().
		Str("detector", detector.Backend()).
		Str("violation_log", store.Path()).
		Bool("voice", cfg.VoiceEnabled).
		Bool("nats", sc.Messaging != nil).
		Msg("Services initialized")

	return sc, nil
}

// Shutdown stops sessions first, then the services they feed
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	var errs []error

	if sc.Sessions != nil {
		if err := sc.Sessions.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if sc.Publisher != nil {
		if err := sc.Publisher.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if sc.PostProcessing != nil {
		if err := sc.PostProcessing.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if sc.Messaging != nil {
		if err := sc.Messaging.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if sc.ViolationLog != nil {
		if err := sc.ViolationLog.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if sc.Detector != nil {
		if err := sc.Detector.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
