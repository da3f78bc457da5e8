package httpadapter

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/couchcryptid/quake-map-service/internal/live"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	clientBuffer   = 64
)

// clientMessage is a row interaction sent by a live client.
type clientMessage struct {
	Type string `json:"type"`
	Row  string `json:"row"`
}

// live upgrades to a WebSocket and streams hub events until either side
// closes. Incoming hover and click messages are applied to the bridge.
func (h *handlers) live(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	h.logger.Debug("live client connected", "remote", r.RemoteAddr)

	events, cancel := h.deps.Live.Subscribe(clientBuffer)
	replies := make(chan live.Event, 8)
	done := make(chan struct{})

	go h.writePump(conn, events, replies, done)
	h.readPump(conn, replies)

	cancel()
	<-done
	h.logger.Debug("live client disconnected", "remote", r.RemoteAddr)
}

// writePump owns all writes to conn. It closes conn on exit, which also
// ends the read loop.
func (h *handlers) writePump(conn *websocket.Conn, events <-chan live.Event, replies <-chan live.Event, done chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
		close(done)
	}()

	for {
		select {
		case ev, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case ev := <-replies:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *handlers) readPump(conn *websocket.Conn, replies chan<- live.Event) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("live client read failed", "error", err)
			}
			return
		}
		if err := h.apply(data); err != nil {
			select {
			case replies <- live.Event{Type: live.TypeCommandError, Error: err.Error()}:
			default:
			}
		}
	}
}

func (h *handlers) apply(data []byte) error {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	switch msg.Type {
	case "hover":
		_, _, err := h.deps.Bridge.Hover(msg.Row)
		return err
	case "click":
		_, _, err := h.deps.Bridge.Click(msg.Row)
		return err
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}
