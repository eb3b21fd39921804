package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Event types pushed to dashboard clients
const (
	EventFrame    = "frame"
	EventProgress = "progress"
	EventAudio    = "audio"
	EventNotice   = "notice"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 32

	// backlogSize bounds the audio and notice events kept per session for
	// clients that subscribe after the session started
	backlogSize = 16
)

// Event is the JSON envelope of every websocket message
type Event struct {
	Type       string    `json:"type"`
	SessionID  string    `json:"session_id"`
	Progress   *float64  `json:"progress,omitempty"`
	Violations *int      `json:"violations,omitempty"`
	Audio      string    `json:"audio,omitempty"` // base64
	MIMEType   string    `json:"mime_type,omitempty"`
	Level      string    `json:"level,omitempty"`
	Message    string    `json:"message,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	conn      *websocket.Conn
	sessionID string
	send      chan []byte
}

// backlog is what a late subscriber to a session is sent first
type backlog struct {
	progress []byte
	events   [][]byte
}

// Hub broadcasts session events to subscribed dashboard clients. A client
// subscribed with an empty session ID receives every session's events.
// A client subscribed to one session first receives that session's latest
// progress and recent audio and notice events.
type Hub struct {
	mutex    sync.RWMutex
	clients  map[*client]struct{}
	backlogs map[string]*backlog
}

func NewHub() *Hub {
	return &Hub{
		clients:  make(map[*client]struct{}),
		backlogs: make(map[string]*backlog),
	}
}

// Broadcast sends ev to every client watching ev.SessionID. Slow clients are
// dropped rather than blocking the session driver.
func (h *Hub) Broadcast(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("type", ev.Type).Msg("Failed to encode websocket event")
		return
	}

	h.mutex.Lock()
	h.rememberLocked(ev, msg)
	var slow []*client
	for c := range h.clients {
		if c.sessionID != "" && c.sessionID != ev.SessionID {
			continue
		}
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mutex.Unlock()

	for _, c := range slow {
		log.Warn().Str("session_id", c.sessionID).Msg("Dropping slow websocket client")
		h.unregister(c)
	}
}

func (h *Hub) rememberLocked(ev Event, msg []byte) {
	if ev.SessionID == "" || ev.Type == EventFrame {
		return
	}
	b, ok := h.backlogs[ev.SessionID]
	if !ok {
		b = &backlog{}
		h.backlogs[ev.SessionID] = b
	}
	if ev.Type == EventProgress {
		b.progress = msg
		return
	}
	b.events = append(b.events, msg)
	if len(b.events) > backlogSize {
		b.events = b.events[len(b.events)-backlogSize:]
	}
}

// Forget drops the backlog of a session
func (h *Hub) Forget(sessionID string) {
	h.mutex.Lock()
	delete(h.backlogs, sessionID)
	h.mutex.Unlock()
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Serve upgrades the request and streams events until the client disconnects
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	c := &client{conn: conn, sessionID: sessionID, send: make(chan []byte, sendBuffer)}
	h.register(c)

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *client) {
	h.mutex.Lock()
	if b, ok := h.backlogs[c.sessionID]; ok && c.sessionID != "" {
		if b.progress != nil {
			c.send <- b.progress
		}
		for _, msg := range b.events {
			c.send <- msg
		}
	}
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mutex.Unlock()
	log.Info().Str("session_id", c.sessionID).Int("total", total).Msg("Dashboard client connected")
}

func (h *Hub) unregister(c *client) {
	h.mutex.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	total := len(h.clients)
	h.mutex.Unlock()
	log.Info().Str("session_id", c.sessionID).Int("total", total).Msg("Dashboard client disconnected")
}

// readPump only services control frames; the dashboard never sends data
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("Dashboard client read error")
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Shutdown disconnects every client
func (h *Hub) Shutdown() {
	h.mutex.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mutex.RUnlock()

	for _, c := range clients {
		h.unregister(c)
	}
}
