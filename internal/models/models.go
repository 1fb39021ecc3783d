package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a marketplace member. Everything chat-related hangs off the user id.
//
// PasswordHash is never serialized; handlers return the struct as-is.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Chat is one user's membership record onto a channel. The title is the user's own
// display name for the conversation, so two members of the same channel can see
// different titles.
type Chat struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	ChannelID uuid.UUID `json:"channel_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatInfo is a row of the "my chats" list.
type ChatInfo struct {
	ChatID       uuid.UUID   `json:"chat_id"`
	ChannelID    uuid.UUID   `json:"channel_id"`
	ChannelType  ChannelType `json:"channel_type"`
	Title        string      `json:"title"`
	LastMessage  string      `json:"last_message"`
	LastActivity time.Time   `json:"last_activity"`
	UnreadCount  int64       `json:"unread_count"`
}

type MessageType string

const (
	MessageTypeEnter MessageType = "ENTER"
	MessageTypeExit  MessageType = "EXIT"
	MessageTypeChat  MessageType = "CHAT"
)

// Message is the durable history of a channel.
//
// int64 id: bigserial, so ids order the same way as creation time and work as
// pagination cursors.
type Message struct {
	ID          int64       `json:"id"`
	ChannelID   uuid.UUID   `json:"channel_id"`
	SenderID    uuid.UUID   `json:"sender_id"`
	MessageType MessageType `json:"message_type"`
	Content     string      `json:"content"`
	CreatedAt   time.Time   `json:"created_at"`
}

// ChatMessage is the per-chat delivery record of a message. Its existence for a chat
// is what "this member has history in the channel" means.
type ChatMessage struct {
	ID        int64     `json:"id"`
	ChatID    uuid.UUID `json:"chat_id"`
	MessageID int64     `json:"message_id"`
	IsRead    bool      `json:"is_read"`
}

// Page is one slice of a paged listing. Page is zero-based.
type Page[T any] struct {
	Items []T   `json:"items"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
	Total int64 `json:"total"`
}

func (p Page[T]) HasNext() bool {
	return int64((p.Page+1)*p.Size) < p.Total
}
