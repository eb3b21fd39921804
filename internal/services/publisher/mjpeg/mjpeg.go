package mjpeg

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

const (
	boundary          = "frame"
	keepaliveInterval = 2 * time.Second
)

// Publisher keeps the latest annotated JPEG per session and fans it out to
// multipart viewers
type Publisher struct {
	jpegMutex  sync.RWMutex
	latestJPEG map[string][]byte

	notifyMutex sync.RWMutex
	viewers     map[string]map[chan struct{}]struct{}

	keepalive time.Duration
}

func NewPublisher() *Publisher {
	return &Publisher{
		latestJPEG: make(map[string][]byte),
		viewers:    make(map[string]map[chan struct{}]struct{}),
		keepalive:  keepaliveInterval,
	}
}

// PublishJPEG stores jpeg as the session's current frame and wakes its viewers.
// The slice must not be modified afterwards.
func (p *Publisher) PublishJPEG(sessionID string, jpeg []byte) {
	if len(jpeg) == 0 {
		return
	}
	p.jpegMutex.Lock()
	p.latestJPEG[sessionID] = jpeg
	p.jpegMutex.Unlock()

	p.notifyMutex.RLock()
	for ch := range p.viewers[sessionID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	p.notifyMutex.RUnlock()
}

// Latest returns the session's current frame
func (p *Publisher) Latest(sessionID string) ([]byte, bool) {
	p.jpegMutex.RLock()
	defer p.jpegMutex.RUnlock()
	b, ok := p.latestJPEG[sessionID]
	return b, ok && len(b) > 0
}

// Remove forgets the session's frame. Connected viewers keep their last image.
func (p *Publisher) Remove(sessionID string) {
	p.jpegMutex.Lock()
	delete(p.latestJPEG, sessionID)
	p.jpegMutex.Unlock()
}

func (p *Publisher) subscribe(sessionID string) chan struct{} {
	ch := make(chan struct{}, 1)
	p.notifyMutex.Lock()
	if p.viewers[sessionID] == nil {
		p.viewers[sessionID] = make(map[chan struct{}]struct{})
	}
	p.viewers[sessionID][ch] = struct{}{}
	p.notifyMutex.Unlock()
	return ch
}

func (p *Publisher) unsubscribe(sessionID string, ch chan struct{}) {
	p.notifyMutex.Lock()
	defer p.notifyMutex.Unlock()
	delete(p.viewers[sessionID], ch)
	if len(p.viewers[sessionID]) == 0 {
		delete(p.viewers, sessionID)
	}
}

// ViewerCount returns the number of open streams for a session
func (p *Publisher) ViewerCount(sessionID string) int {
	p.notifyMutex.RLock()
	defer p.notifyMutex.RUnlock()
	return len(p.viewers[sessionID])
}

// StreamMJPEGHTTP writes the session as multipart/x-mixed-replace until the
// client goes away
func (p *Publisher) StreamMJPEGHTTP(w http.ResponseWriter, r *http.Request, sessionID string) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	notify := p.subscribe(sessionID)
	defer p.unsubscribe(sessionID, notify)

	writePart := func(jpeg []byte) bool {
		if _, err := io.WriteString(w, "--"+boundary+"\r\n"); err != nil {
			return false
		}
		if _, err := io.WriteString(w, "Content-Type: image/jpeg\r\n"); err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(jpeg)); err != nil {
			return false
		}
		if _, err := w.Write(jpeg); err != nil {
			return false
		}
		if _, err := io.WriteString(w, "\r\n"); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	first, ok := p.Latest(sessionID)
	if !ok {
		first = placeholder(sessionID)
	}
	if len(first) > 0 && !writePart(first) {
		return
	}

	keepalive := time.NewTicker(p.keepalive)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("session_id", sessionID).Msg("MJPEG viewer left")
			return
		case <-notify:
		case <-keepalive.C:
		}
		if buf, ok := p.Latest(sessionID); ok {
			if !writePart(buf) {
				return
			}
		}
	}
}

func placeholder(sessionID string) []byte {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(64, 64, 64, 0), 360, 640, gocv.MatTypeCV8UC3)
	defer img.Close()

	textColor := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	if len(sessionID) > 8 {
		sessionID = sessionID[:8]
	}
	gocv.PutText(&img, "Session: "+sessionID, image.Pt(20, 180), gocv.FontHersheySimplex, 1.0, textColor, 2)
	gocv.PutText(&img, "Waiting for frames...", image.Pt(20, 220), gocv.FontHersheySimplex, 0.8, textColor, 2)

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, 90})
	if err != nil {
		return nil
	}
	defer buf.Close()
	return buf.GetBytes()
}

func (p *Publisher) Shutdown() {
	log.Info().Msg("MJPEG Publisher shutting down")
}
