package publisher

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"helmet-guard-go/internal/config"
	"helmet-guard-go/internal/services/publisher/websocket"
	"helmet-guard-go/internal/services/voice"
)

func TestService_ShowFrameStoresJPEG(t *testing.T) {
	svc := NewService(&config.Config{OutputQuality: 80})

	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 255, 0), 32, 32, gocv.MatTypeCV8UC3)
	defer frame.Close()

	svc.ShowFrame("s1", frame, 2)

	jpeg, ok := svc.LatestFrame("s1")
	require.True(t, ok)
	assert.Equal(t, byte(0xFF), jpeg[0])
	assert.Equal(t, byte(0xD8), jpeg[1])

	svc.Forget("s1")
	_, ok = svc.LatestFrame("s1")
	assert.False(t, ok)
}

func TestService_PlayAudioBroadcastsBase64(t *testing.T) {
	svc := NewService(&config.Config{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		svc.ServeEvents(w, r, "s1")
	}))
	defer srv.Close()

	conn, _, err := gws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return svc.ClientCount() == 1 }, time.Second, time.Millisecond)

	svc.PlayAudio("s1", nil)
	svc.PlayAudio("s1", &voice.Alert{
		Message: "Harap gunakan helm",
		Audio:   voice.Audio{Data: []byte("mp3"), MIMEType: "audio/mpeg"},
		FiredAt: time.Now(),
	})

	var ev websocket.Event
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, websocket.EventAudio, ev.Type)
	assert.Equal(t, "bXAz", ev.Audio)
	assert.Equal(t, "audio/mpeg", ev.MIMEType)
}
