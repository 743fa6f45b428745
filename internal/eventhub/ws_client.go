package eventhub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mediaguard/backend/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
)

// WebSocketClient streams events to one websocket connection. The stream is
// one-way; inbound frames other than control frames are discarded.
type WebSocketClient struct {
	ID    string
	Conn  *websocket.Conn
	Hub   *Hub
	Send  chan models.Event
	Types map[string]bool // empty means every event

	closeOnce sync.Once
}

func NewWebSocketClient(id string, conn *websocket.Conn, hub *Hub, types ...string) *WebSocketClient {
	c := &WebSocketClient{
		ID:   id,
		Conn: conn,
		Hub:  hub,
		Send: make(chan models.Event, sendBuffer),
	}
	if len(types) > 0 {
		c.Types = make(map[string]bool, len(types))
		for _, t := range types {
			c.Types[t] = true
		}
	}
	return c
}

func (c *WebSocketClient) GetID() string                       { return c.ID }
func (c *WebSocketClient) GetSendChannel() chan<- models.Event { return c.Send }

func (c *WebSocketClient) Accepts(ev models.Event) bool {
	return len(c.Types) == 0 || c.Types[ev.Type]
}

func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close stops writePump, which closes the connection.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.Send) })
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Debug("websocket read failed", "client", c.ID, "err", err)
			}
			return
		}
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(ev); err != nil {
				c.Hub.log.Debug("websocket write failed", "client", c.ID, "err", err)
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
