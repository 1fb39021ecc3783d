// Package ws is the live transport: websocket clients subscribe to channels they
// hold a chat in and receive that channel's events.
package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/asjjun/naejango/internal/apperr"
	"github.com/asjjun/naejango/internal/events"
	"github.com/asjjun/naejango/internal/models"
	"github.com/asjjun/naejango/internal/observ"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
	lookupTimeout  = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ChatLookup is the part of the chat repository the hub needs to authorize a
// subscription.
type ChatLookup interface {
	FindByChannelAndOwner(ctx context.Context, channelID, ownerID uuid.UUID) (*models.Chat, error)
}

// Hub tracks connected clients and their channel subscriptions. It is safe for
// concurrent use.
type Hub struct {
	chats  ChatLookup
	logger *zap.Logger

	mu       sync.RWMutex
	clients  map[*Client]struct{}
	channels map[uuid.UUID]map[*Client]struct{}
}

func NewHub(chats ChatLookup, logger *zap.Logger) *Hub {
	return &Hub{
		chats:    chats,
		logger:   logger,
		clients:  make(map[*Client]struct{}),
		channels: make(map[uuid.UUID]map[*Client]struct{}),
	}
}

// Publish delivers ev to this instance's subscribers. It never blocks on a slow
// client.
func (h *Hub) Publish(_ context.Context, ev events.Event) error {
	payload, err := events.Encode(ev)
	if err != nil {
		return err
	}
	h.deliver(ev, payload)
	return nil
}

func (h *Hub) deliver(ev events.Event, payload []byte) {
	if ev.Type == events.TypeLeave {
		h.unsubscribeUser(ev.ChannelID, ev.SenderID)
		return
	}

	h.mu.RLock()
	subs := make([]*Client, 0, len(h.channels[ev.ChannelID]))
	for c := range h.channels[ev.ChannelID] {
		subs = append(subs, c)
	}
	h.mu.RUnlock()

	for _, c := range subs {
		if !c.enqueue(payload) {
			h.logger.Warn("websocket client too slow, disconnecting",
				zap.String("user_id", c.userID.String()))
			h.remove(c)
		}
	}

	// A member that left must stop receiving the channel, including on other
	// connections of the same user.
	if ev.Type == events.TypeExit {
		h.unsubscribeUser(ev.ChannelID, ev.SenderID)
	}
}

// Relay delivers events received from redis pub/sub until ctx ends or msgs closes.
func (h *Hub) Relay(ctx context.Context, msgs <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			ev, err := events.Decode([]byte(msg.Payload))
			if err != nil {
				h.logger.Warn("dropping malformed relayed event",
					zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			h.deliver(ev, []byte(msg.Payload))
		}
	}
}

// ServeWS upgrades the request and serves the connection for userID until it
// closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &Client{
		hub:    h,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, sendBuffer),
		subs:   make(map[uuid.UUID]struct{}),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	observ.WSConnections.Inc()

	go c.writePump()
	c.readPump()
}

func (h *Hub) subscribe(ctx context.Context, c *Client, channelID uuid.UUID) error {
	chat, err := h.chats.FindByChannelAndOwner(ctx, channelID, c.userID)
	if err != nil {
		return err
	}
	if chat == nil {
		return apperr.ErrChatNotFound
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return nil
	}
	subs, ok := h.channels[channelID]
	if !ok {
		subs = make(map[*Client]struct{})
		h.channels[channelID] = subs
	}
	subs[c] = struct{}{}
	c.subs[channelID] = struct{}{}
	return nil
}

func (h *Hub) unsubscribe(c *Client, channelID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c, channelID)
}

func (h *Hub) unsubscribeUser(channelID, userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.channels[channelID] {
		if c.userID == userID {
			h.dropLocked(c, channelID)
		}
	}
}

func (h *Hub) dropLocked(c *Client, channelID uuid.UUID) {
	delete(c.subs, channelID)
	if subs, ok := h.channels[channelID]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.channels, channelID)
		}
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for channelID := range c.subs {
		h.dropLocked(c, channelID)
	}
	h.mu.Unlock()

	c.close()
	observ.WSConnections.Dec()
}

// Subscribers reports how many local clients are subscribed to channelID.
func (h *Hub) Subscribers(channelID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channelID])
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	all := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()

	for _, c := range all {
		h.remove(c)
	}
}
