package voice

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"

	"helmet-guard-go/internal/models"
)

// Alert is a fired spoken warning ready for playback
type Alert struct {
	Message  string    `json:"message"`
	Language string    `json:"language"`
	Audio    Audio     `json:"-"`
	FiredAt  time.Time `json:"fired_at"`
}

// Throttle fires the spoken helmet warning at most once per cooldown window
type Throttle struct {
	mu       sync.Mutex
	synth    Synthesizer
	clock    clock.Clock
	cooldown time.Duration
	message  string
	lang     string

	last  time.Time
	fired bool
}

func NewThrottle(synth Synthesizer, clk clock.Clock, cooldown time.Duration, message, lang string) *Throttle {
	if clk == nil {
		clk = clock.New()
	}
	return &Throttle{
		synth:    synth,
		clock:    clk,
		cooldown: cooldown,
		message:  message,
		lang:     lang,
	}
}

// MaybeAlert synthesizes the warning when count > 0 and strictly more than the
// cooldown has passed since the last successful alert. It returns (nil, nil)
// when nothing fires. On synthesis failure the cooldown is left untouched so
// the next violating frame may retry.
func (t *Throttle) MaybeAlert(ctx context.Context, count int) (*Alert, error) {
	if count <= 0 {
		return nil, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.fired && t.clock.Now().Sub(t.last) <= t.cooldown {
		return nil, nil
	}

	audio, err := t.synth.Synthesize(ctx, t.message, t.lang)
	if err != nil {
		return nil, &models.VoiceSynthesisError{Err: err}
	}

	now := t.clock.Now()
	t.last = now
	t.fired = true

	log.Debug().Int("violations", count).Time("fired_at", now).Msg("Voice alert fired")

	return &Alert{
		Message:  t.message,
		Language: t.lang,
		Audio:    audio,
		FiredAt:  now,
	}, nil
}

// LastFired returns the time of the last successful alert
func (t *Throttle) LastFired() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.fired
}
