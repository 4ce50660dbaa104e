package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	// DefaultSendBuffer is the per-connection outbound queue length.
	DefaultSendBuffer = 64
)

// inbound frames: {"event":"join_room","data":"shop_1"}
type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Client is one live WebSocket connection.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, buffer int, logger *zap.Logger) *Client {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	id := uuid.NewString()
	return &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
		logger: logger.With(zap.String("client_id", id)),
	}
}

func (c *Client) ID() string { return c.id }

// enqueue never blocks. It reports false when the message was dropped.
func (c *Client) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// close marks the client done before leaving the hub; Join checks done
// under the hub lock.
func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		c.hub.Remove(c)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

func (c *Client) reply(event string, data interface{}) {
	msg, err := json.Marshal(envelope{Event: event, Data: data})
	if err != nil {
		return
	}
	c.enqueue(msg)
}

func (c *Client) handle(frame []byte) {
	var in inbound
	if err := json.Unmarshal(frame, &in); err != nil {
		c.reply(EventError, "malformed frame")
		return
	}

	switch in.Event {
	case "join_room", "leave_room":
		var room string
		if err := json.Unmarshal(in.Data, &room); err != nil {
			c.reply(EventError, "room must be a string")
			return
		}
		if err := ValidateRoom(room); err != nil {
			c.reply(EventError, err.Error())
			return
		}
		if in.Event == "join_room" {
			if !c.hub.Join(c, room) {
				return
			}
			c.logger.Debug("joined room", zap.String("room", room))
			c.reply(EventJoined, room)
		} else {
			c.hub.Leave(c, room)
		}
	default:
		c.reply(EventError, "unknown event "+in.Event)
	}
}

func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		c.handle(frame)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
