package postprocessing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helmet-guard-go/internal/config"
	"helmet-guard-go/internal/metrics"
	"helmet-guard-go/internal/models"
	"helmet-guard-go/internal/services/voice"
)

type recordCall struct {
	source string
	count  int
}

type fakeRecorder struct {
	calls []recordCall
	err   error
}

func (f *fakeRecorder) Record(_ context.Context, source string, count int) error {
	f.calls = append(f.calls, recordCall{source, count})
	return f.err
}

type fakeThrottle struct {
	calls int
	alert *voice.Alert
	err   error
}

func (f *fakeThrottle) MaybeAlert(_ context.Context, count int) (*voice.Alert, error) {
	f.calls++
	return f.alert, f.err
}

type fakePublisher struct {
	subjects []string
	events   []models.ViolationEvent
	err      error
}

func (f *fakePublisher) Publish(subject string, data interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.events = append(f.events, data.(models.ViolationEvent))
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		WorkerID:          "helmet-test",
		LogLiveViolations: true,
		AlertsSubject:     "helmet.violations",
	}
}

func TestHandleNoViolationsIsNoop(t *testing.T) {
	rec, th, pub := &fakeRecorder{}, &fakeThrottle{}, &fakePublisher{}
	svc, err := NewService(testConfig(), rec, th, WithPublisher(pub))
	require.NoError(t, err)

	out := svc.Handle(context.Background(), FrameOutcome{Origin: Origin{Mode: models.ModeImage, Name: "a.jpg"}})
	assert.Equal(t, Outcome{}, out)
	assert.Empty(t, rec.calls)
	assert.Zero(t, th.calls)
	assert.Empty(t, pub.events)
}

func TestHandleViolationRunsAllSideEffects(t *testing.T) {
	rec := &fakeRecorder{}
	th := &fakeThrottle{alert: &voice.Alert{Message: "helm"}}
	pub := &fakePublisher{}
	m := metrics.New()
	clk := clock.NewMock()
	svc, err := NewService(testConfig(), rec, th, WithPublisher(pub), WithMetrics(m), WithClock(clk))
	require.NoError(t, err)

	out := svc.Handle(context.Background(), FrameOutcome{
		Origin:     Origin{SessionID: "s1", Mode: models.ModeVideo, Name: "site.mp4"},
		Violations: 2,
		Labels:     []string{"head"},
	})

	assert.True(t, out.Logged)
	assert.NotNil(t, out.Alert)
	assert.True(t, out.Published)
	assert.Equal(t, []recordCall{{"site.mp4", 2}}, rec.calls)
	require.Len(t, pub.events, 1)
	assert.Equal(t, "helmet.violations", pub.subjects[0])
	assert.Equal(t, models.ViolationEvent{
		WorkerID:       "helmet-test",
		SessionID:      "s1",
		Mode:           models.ModeVideo,
		Source:         "site.mp4",
		ViolationCount: 2,
		Labels:         []string{"head"},
		Timestamp:      clk.Now(),
	}, pub.events[0])

	s := m.Snapshot()
	assert.EqualValues(t, 1, s.LogWrites)
	assert.EqualValues(t, 1, s.VoiceAlerts)
	assert.EqualValues(t, 1, s.EventsPublished)
}

func TestHandleSwallowsFailures(t *testing.T) {
	logErr := &models.LogWriteError{Path: "x.xlsx", Err: errors.New("corrupt")}
	voiceErr := &models.VoiceSynthesisError{Err: errors.New("offline")}
	rec := &fakeRecorder{err: logErr}
	th := &fakeThrottle{err: voiceErr}
	pub := &fakePublisher{err: errors.New("nats down")}
	svc, err := NewService(testConfig(), rec, th, WithPublisher(pub))
	require.NoError(t, err)

	out := svc.Handle(context.Background(), FrameOutcome{Origin: Origin{Mode: models.ModeImage, Name: "a.jpg"}, Violations: 1})

	assert.False(t, out.Logged)
	assert.ErrorIs(t, out.LogErr, logErr)
	assert.ErrorIs(t, out.VoiceErr, voiceErr)
	assert.Error(t, out.PublishErr)
	assert.Equal(t, 1, th.calls, "voice still attempted after a log failure")
}

func TestHandleLiveLoggingSwitch(t *testing.T) {
	cfg := testConfig()
	rec := &fakeRecorder{}
	svc, err := NewService(cfg, rec, nil)
	require.NoError(t, err)

	live := FrameOutcome{Origin: Origin{SessionID: "cam", Mode: models.ModeWebcam}, Violations: 1}
	out := svc.Handle(context.Background(), live)
	assert.True(t, out.Logged)
	assert.Equal(t, []recordCall{{"", 1}}, rec.calls, "live rows carry an empty source")

	cfg.LogLiveViolations = false
	out = svc.Handle(context.Background(), live)
	assert.False(t, out.Logged)
	assert.Len(t, rec.calls, 1)
}

func TestPublishCooldownPerSession(t *testing.T) {
	cfg := testConfig()
	cfg.AlertsCooldown = 10 * time.Second
	pub := &fakePublisher{}
	clk := clock.NewMock()
	svc, err := NewService(cfg, &fakeRecorder{}, nil, WithPublisher(pub), WithClock(clk))
	require.NoError(t, err)

	frame := func(id string) FrameOutcome {
		return FrameOutcome{Origin: Origin{SessionID: id, Mode: models.ModeVideo}, Violations: 1}
	}
	ctx := context.Background()

	assert.True(t, svc.Handle(ctx, frame("a")).Published)
	clk.Add(4 * time.Second)
	assert.False(t, svc.Handle(ctx, frame("a")).Published)
	assert.True(t, svc.Handle(ctx, frame("b")).Published)
	clk.Add(6 * time.Second)
	assert.True(t, svc.Handle(ctx, frame("a")).Published)

	assert.Len(t, pub.events, 3)

	svc.Forget("b")
	assert.True(t, svc.CheckCooldown("b"))
}

func TestNewServiceRequiresRecorder(t *testing.T) {
	_, err := NewService(testConfig(), nil, nil)
	assert.Error(t, err)
}
