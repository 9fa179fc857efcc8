package api

import (
	"encoding/json"
	"time"

	"github.com/annel0/pong-engine/internal/game"
	"github.com/annel0/pong-engine/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second // Должен быть меньше pongWait
	maxMessageSize = 4096
	streamBuffer   = 8
)

// handleStream передаёт клиенту снимки матча после каждого кадра.
// Клиент может присылать InputRequest в том же соединении.
func (rs *RestServer) handleStream(c *gin.Context) {
	m, err := rs.manager.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := rs.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade для матча %s: %v", m.ID(), err)
		return
	}

	snaps, cancel := m.Subscribe(streamBuffer)
	done := make(chan struct{})
	go rs.readPump(conn, m, done)
	rs.writePump(conn, m.Snapshot(), snaps, done)
	cancel()
}

// readPump читает ввод клиента; закрывает done при разрыве соединения
func (rs *RestServer) readPump(conn *websocket.Conn, m *game.Match, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Debug("WebSocket матча %s: %v", m.ID(), err)
			}
			return
		}

		var req InputRequest
		if err := json.Unmarshal(message, &req); err != nil {
			logging.Debug("WebSocket матча %s: некорректное сообщение: %v", m.ID(), err)
			continue
		}
		if err := applyInput(m, req); err != nil {
			logging.Debug("WebSocket матча %s: ввод отклонён: %v", m.ID(), err)
		}
	}
}

// writePump отправляет первый снимок сразу, затем по мере поступления.
// Завершается, когда матч закрыл подписку или клиент отключился.
func (rs *RestServer) writePump(conn *websocket.Conn, first game.Snapshot, snaps <-chan game.Snapshot, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	if err := writeSnapshot(conn, first); err != nil {
		return
	}

	for {
		select {
		case snap, ok := <-snaps:
			if !ok {
				// Матч окончен или удалён
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "match closed"))
				return
			}
			if err := writeSnapshot(conn, snap); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func writeSnapshot(conn *websocket.Conn, snap game.Snapshot) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(snap)
}
