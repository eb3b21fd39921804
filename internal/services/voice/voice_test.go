package voice

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helmet-guard-go/internal/models"
)

type fakeSynth struct {
	calls   int32
	err     error
	onCall  func()
	lastLng string
}

func (f *fakeSynth) Synthesize(_ context.Context, text, lang string) (Audio, error) {
	atomic.AddInt32(&f.calls, 1)
	f.lastLng = lang
	if f.onCall != nil {
		f.onCall()
	}
	if f.err != nil {
		return Audio{}, f.err
	}
	return Audio{Data: []byte("mp3:" + text), MIMEType: "audio/mpeg"}, nil
}

func newTestThrottle(synth Synthesizer) (*Throttle, *clock.Mock) {
	clk := clock.NewMock()
	return NewThrottle(synth, clk, 5*time.Second, "Harap gunakan helm untuk keselamatan Anda", "id"), clk
}

func TestThrottleWithinCooldownFiresOnce(t *testing.T) {
	synth := &fakeSynth{}
	th, clk := newTestThrottle(synth)
	ctx := context.Background()

	a, err := th.MaybeAlert(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "id", synth.lastLng)

	clk.Add(3 * time.Second)
	a, err = th.MaybeAlert(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, a)

	assert.EqualValues(t, 1, synth.calls)
}

func TestThrottleAfterCooldownFiresTwice(t *testing.T) {
	synth := &fakeSynth{}
	th, clk := newTestThrottle(synth)
	ctx := context.Background()

	_, err := th.MaybeAlert(ctx, 1)
	require.NoError(t, err)

	clk.Add(6 * time.Second)
	a, err := th.MaybeAlert(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, clk.Now(), a.FiredAt)

	assert.EqualValues(t, 2, synth.calls)
}

func TestThrottleCooldownIsStrict(t *testing.T) {
	synth := &fakeSynth{}
	th, clk := newTestThrottle(synth)

	_, _ = th.MaybeAlert(context.Background(), 1)
	clk.Add(5 * time.Second)
	a, err := th.MaybeAlert(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, a, "exactly one cooldown elapsed is not enough")
}

func TestThrottleZeroCountIsNoop(t *testing.T) {
	synth := &fakeSynth{}
	th, _ := newTestThrottle(synth)

	a, err := th.MaybeAlert(context.Background(), 0)
	assert.NoError(t, err)
	assert.Nil(t, a)
	assert.EqualValues(t, 0, synth.calls)

	_, fired := th.LastFired()
	assert.False(t, fired)
}

func TestThrottleFailureLeavesStateUntouched(t *testing.T) {
	synth := &fakeSynth{err: errors.New("network down")}
	th, clk := newTestThrottle(synth)
	ctx := context.Background()

	a, err := th.MaybeAlert(ctx, 1)
	assert.Nil(t, a)
	var vErr *models.VoiceSynthesisError
	require.True(t, errors.As(err, &vErr))
	_, fired := th.LastFired()
	assert.False(t, fired)

	// immediately eligible to retry
	synth.err = nil
	clk.Add(100 * time.Millisecond)
	a, err = th.MaybeAlert(ctx, 1)
	require.NoError(t, err)
	assert.NotNil(t, a)
}

func TestThrottleStampsTimeAfterSynthesis(t *testing.T) {
	synth := &fakeSynth{}
	th, clk := newTestThrottle(synth)
	synth.onCall = func() { clk.Add(2 * time.Second) }
	ctx := context.Background()

	a, err := th.MaybeAlert(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, a)
	last, _ := th.LastFired()
	assert.Equal(t, time.Unix(2, 0).UTC(), last.UTC())

	// t=6, only 4s since the stamped time
	synth.onCall = nil
	clk.Add(4 * time.Second)
	a, err = th.MaybeAlert(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestSplitText(t *testing.T) {
	assert.Equal(t, []string{"Harap gunakan helm untuk keselamatan Anda"}, splitText("Harap gunakan helm untuk keselamatan Anda", 100))
	assert.Empty(t, splitText("   ", 100))

	chunks := splitText("aaaa bbbb cccc", 9)
	assert.Equal(t, []string{"aaaa bbbb", "cccc"}, chunks)

	long := strings.Repeat("x", 250)
	chunks = splitText(long, 100)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[2], 50)
}

func TestGoogleTTSSynthesize(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.Query().Get("idx"))
		assert.Equal(t, "tw-ob", r.URL.Query().Get("client"))
		assert.Equal(t, "id", r.URL.Query().Get("tl"))
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3"))
	}))
	defer srv.Close()

	tts := NewGoogleTTS(srv.URL, time.Second)
	audio, err := tts.Synthesize(context.Background(), strings.Repeat("helm ", 30), "id")
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", audio.MIMEType)
	assert.Equal(t, []string{"0", "1"}, seen)
	assert.Equal(t, "ID3ID3", string(audio.Data))
}

func TestGoogleTTSErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewGoogleTTS(srv.URL, time.Second).Synthesize(context.Background(), "halo", "id")
	assert.Error(t, err)
}
