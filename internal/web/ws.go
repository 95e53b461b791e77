package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BSMSciTech/guardian-pi-door/internal/status"
)

const (
	wsPushInterval = time.Second
	wsWriteWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from the same origin; no cross-origin
	// clients are expected.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS streams the status document to the dashboard once a second. The
// read side exists only to notice the close handshake.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debugw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPushInterval)
	defer ticker.Stop()

	push := func() error {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteMessage(websocket.TextMessage, status.FormatJSON(s.tracker.Snapshot()))
	}
	if err := push(); err != nil {
		return
	}
	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			if err := push(); err != nil {
				return
			}
		}
	}
}
