package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Viewer pages are served from arbitrary origins
	},
}

// liveEvent is what viewers receive over the socket. Partial segments
// are forwarded too so captions update mid-sentence.
type liveEvent struct {
	Type    string `json:"type"` // segment, session_ended
	Text    string `json:"text,omitempty"`
	IsFinal bool   `json:"isFinal,omitempty"`
}

// liveHub fans transcript events out to viewer connections per session.
type liveHub struct {
	mu       sync.Mutex
	sessions map[string]map[*websocket.Conn]bool
}

func newLiveHub() *liveHub {
	return &liveHub{sessions: make(map[string]map[*websocket.Conn]bool)}
}

func (h *liveHub) add(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.sessions[sessionID]
	if !ok {
		conns = make(map[*websocket.Conn]bool)
		h.sessions[sessionID] = conns
	}
	conns[conn] = true
}

func (h *liveHub) remove(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(h.sessions, sessionID)
	}
}

// broadcast sends an event to every viewer of a session. Write failures
// drop the connection; the viewer's read loop handles cleanup.
func (h *liveHub) broadcast(sessionID string, event liveEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.sessions[sessionID] {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(event); err != nil {
			conn.Close()
			delete(h.sessions[sessionID], conn)
		}
	}
}

// closeSession notifies viewers the session ended and closes their sockets.
func (h *liveHub) closeSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.sessions[sessionID] {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		_ = conn.WriteJSON(liveEvent{Type: "session_ended"})
		conn.Close()
	}
	delete(h.sessions, sessionID)
}

func (r *Router) handleLiveStream(w http.ResponseWriter, req *http.Request) {
	if !r.streams.Add() {
		writeError(w, http.StatusServiceUnavailable, KindInternal, "server is shutting down")
		return
	}
	sessionID := req.PathValue("id")

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.streams.Done()
		r.logger.Printf("live stream upgrade %s: %v", sessionID, err)
		return
	}

	r.hub.add(sessionID, conn)
	r.logger.Printf("live viewer connected to session %s", sessionID)

	go func() {
		defer func() {
			r.hub.remove(sessionID, conn)
			conn.Close()
			r.streams.Done()
			r.logger.Printf("live viewer left session %s", sessionID)
		}()
		// Viewers never send application messages; the read loop only
		// detects disconnects and answers pings.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
