package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/asjjun/naejango/internal/apperr"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Frame types sent by clients.
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
)

// Frame types sent by the server besides events.
const (
	FrameSubscribed   = "subscribed"
	FrameUnsubscribed = "unsubscribed"
	FrameError        = "error"
)

type clientFrame struct {
	Type      string    `json:"type"`
	ChannelID uuid.UUID `json:"channel_id"`
}

type serverFrame struct {
	Type      string    `json:"type"`
	ChannelID uuid.UUID `json:"channel_id,omitzero"`
	Error     string    `json:"error,omitempty"`
}

// Client is one websocket connection. subs is guarded by hub.mu.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID uuid.UUID
	send   chan []byte
	subs   map[uuid.UUID]struct{}

	mu     sync.Mutex
	closed bool
}

func (c *Client) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) reply(f serverFrame) {
	b, err := json.Marshal(f)
	if err != nil {
		return
	}
	if !c.enqueue(b) {
		c.hub.remove(c)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket closed", zap.String("user_id", c.userID.String()), zap.Error(err))
			}
			return
		}

		var f clientFrame
		if err := json.Unmarshal(raw, &f); err != nil || f.ChannelID == uuid.Nil {
			c.reply(serverFrame{Type: FrameError, Error: string(apperr.CodeInvalidInput)})
			continue
		}

		switch f.Type {
		case FrameSubscribe:
			ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
			err := c.hub.subscribe(ctx, c, f.ChannelID)
			cancel()
			if err != nil {
				code := apperr.CodeInvalidInput
				if appErr, ok := apperr.From(err); ok {
					code = appErr.Code
				} else {
					c.hub.logger.Error("subscription check failed",
						zap.String("channel_id", f.ChannelID.String()), zap.Error(err))
				}
				c.reply(serverFrame{Type: FrameError, ChannelID: f.ChannelID, Error: string(code)})
				continue
			}
			c.reply(serverFrame{Type: FrameSubscribed, ChannelID: f.ChannelID})
		case FrameUnsubscribe:
			c.hub.unsubscribe(c, f.ChannelID)
			c.reply(serverFrame{Type: FrameUnsubscribed, ChannelID: f.ChannelID})
		default:
			c.reply(serverFrame{Type: FrameError, ChannelID: f.ChannelID, Error: string(apperr.CodeInvalidInput)})
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
