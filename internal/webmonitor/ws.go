package webmonitor

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dj-oyu/smart-posture/posture-server/internal/logger"
	"github.com/dj-oyu/smart-posture/posture-server/internal/publish"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10

	// wsEventName matches the socket.io event dashboards already listen for.
	wsEventName = "server_update"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsEnvelope is the socket.io-style message shape.
type wsEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func envelope(ev *publish.Event) ([]byte, error) {
	return json.Marshal(wsEnvelope{Event: wsEventName, Data: ev.JSON})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		logger.Debug("WebSocket", "Upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	id, eventCh := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(id)

	logger.Debug("WebSocket", "Client #%d connected from %s", id, r.RemoteAddr)

	done := make(chan struct{})
	go wsReadPump(conn, done)

	if latest := s.monitor.Latest(); latest != nil {
		if err := wsWrite(conn, latest); err != nil {
			return
		}
	}

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			logger.Debug("WebSocket", "Client #%d disconnected", id)
			return

		case event, ok := <-eventCh:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := wsWrite(conn, event); err != nil {
				logger.Debug("WebSocket", "Client #%d write error: %v", id, err)
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func wsWrite(conn *websocket.Conn, ev *publish.Event) error {
	data, err := envelope(ev)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// wsReadPump discards client messages and keeps the read deadline moving on
// pongs. It closes done when the connection fails.
func wsReadPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("WebSocket", "Read error: %v", err)
			}
			return
		}
	}
}
