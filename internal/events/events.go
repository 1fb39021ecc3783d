// Package events carries channel lifecycle and chat events from the service to
// live subscribers and downstream consumers. Publishing is best effort: the
// database is the record, an event is a nudge.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/asjjun/naejango/internal/models"
	"github.com/google/uuid"
)

type Type string

const (
	TypeEnter   Type = "ENTER"
	TypeExit    Type = "EXIT"
	TypeMessage Type = "MESSAGE"
	// TypeLeave says the sender no longer holds a chat in a private channel. It
	// carries no content and is not shown to the other participant; the hub only
	// drops the sender's subscriptions.
	TypeLeave Type = "LEAVE"
)

// Event is the JSON frame delivered to websocket clients and written to kafka.
type Event struct {
	Type      Type      `json:"type"`
	ChannelID uuid.UUID `json:"channel_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	MessageID int64     `json:"message_id,omitempty"`
	Content   string    `json:"content"`
	SentAt    time.Time `json:"sent_at"`
}

// FromMessage builds the event announcing a persisted message.
func FromMessage(m *models.Message) Event {
	t := TypeMessage
	switch m.MessageType {
	case models.MessageTypeEnter:
		t = TypeEnter
	case models.MessageTypeExit:
		t = TypeExit
	}
	return Event{
		Type:      t,
		ChannelID: m.ChannelID,
		SenderID:  m.SenderID,
		MessageID: m.ID,
		Content:   m.Content,
		SentAt:    m.CreatedAt,
	}
}

// Publisher sends an event without waiting for any subscriber.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ev Event) error

func (f PublisherFunc) Publish(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Nop drops every event.
var Nop Publisher = PublisherFunc(func(context.Context, Event) error { return nil })

func Encode(ev Event) ([]byte, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return b, nil
}

func Decode(b []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}
