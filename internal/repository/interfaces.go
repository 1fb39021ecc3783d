package repository

import (
	"context"
	"errors"
	"time"

	"github.com/asjjun/naejango/internal/models"
	"github.com/google/uuid"
)

// Every method takes ctx first so request cancellation reaches the database.
//
// Lookups return nil, nil when the row does not exist; the service decides
// whether absence is an error.

// ErrDuplicate is returned by Create methods when a unique constraint rejects the
// row: a second chat for the same channel and owner, or an email already taken.
// Concurrent requests can both pass an existence check and then race on the
// insert; the loser gets this error and can re-read the winner's row.
var ErrDuplicate = errors.New("duplicate row")

// ChannelRepository covers both channel variants. The participant counter is only
// ever changed through the conditional Increment/Decrement methods.
type ChannelRepository interface {
	// FindByID returns a *models.PrivateChannel or *models.GroupChannel.
	FindByID(ctx context.Context, channelID uuid.UUID) (models.Channel, error)

	FindByChatID(ctx context.Context, chatID uuid.UUID) (models.Channel, error)

	FindGroupByItemID(ctx context.Context, itemID int64) (*models.GroupChannel, error)

	// FindPrivateBetween returns the private channel where both users hold a chat.
	FindPrivateBetween(ctx context.Context, userA, userB uuid.UUID) (*models.PrivateChannel, error)

	CreatePrivate(ctx context.Context) (*models.PrivateChannel, error)

	// CreateGroup inserts a group channel whose participant count starts at 1 (the owner).
	CreateGroup(ctx context.Context, ownerID uuid.UUID, itemID int64, defaultTitle string, limit int) (*models.GroupChannel, error)

	// IncrementParticipants adds one participant only if the channel is open and
	// below its limit. Returns false when no row qualified.
	IncrementParticipants(ctx context.Context, channelID uuid.UUID) (bool, error)

	// DecrementParticipants removes one participant (never below zero) and returns
	// the new count.
	DecrementParticipants(ctx context.Context, channelID uuid.UUID) (int, error)

	Close(ctx context.Context, channelID uuid.UUID) error

	TouchLastMessage(ctx context.Context, channelID uuid.UUID, at time.Time) error

	Delete(ctx context.Context, channelID uuid.UUID) error
}

// ChatRepository handles per-user membership records.
type ChatRepository interface {
	Create(ctx context.Context, ownerID, channelID uuid.UUID, title string) (*models.Chat, error)

	FindByID(ctx context.Context, chatID uuid.UUID) (*models.Chat, error)

	FindByChannelAndOwner(ctx context.Context, channelID, ownerID uuid.UUID) (*models.Chat, error)

	// FindOtherInPrivateChannel returns the chat in channelID that is not excludeChatID.
	FindOtherInPrivateChannel(ctx context.Context, channelID, excludeChatID uuid.UUID) (*models.Chat, error)

	ListByChannel(ctx context.Context, channelID uuid.UUID) ([]models.Chat, error)

	// ListByOwnerRecent pages the owner's chats, most recent channel activity first.
	ListByOwnerRecent(ctx context.Context, ownerID uuid.UUID, page, size int) (models.Page[models.ChatInfo], error)

	UpdateTitle(ctx context.Context, chatID uuid.UUID, title string) error

	Delete(ctx context.Context, chatID uuid.UUID) error
}

// MessageRepository handles channel history.
type MessageRepository interface {
	Create(ctx context.Context, channelID, senderID uuid.UUID, messageType models.MessageType, content string) (*models.Message, error)

	// ListByChannel returns messages newest first. before=0 means from the latest.
	ListByChannel(ctx context.Context, channelID uuid.UUID, before int64, limit int) ([]models.Message, error)

	DeleteByChannel(ctx context.Context, channelID uuid.UUID) error
}

// ChatMessageRepository handles per-chat delivery records.
type ChatMessageRepository interface {
	// CreateForChats records delivery of messageID to every chat in chatIDs.
	// The record for readChatID (the sender's own chat) starts as read.
	CreateForChats(ctx context.Context, messageID int64, chatIDs []uuid.UUID, readChatID uuid.UUID) error

	DeleteByChat(ctx context.Context, chatID uuid.UUID) error

	ExistsByChat(ctx context.Context, chatID uuid.UUID) (bool, error)

	MarkRead(ctx context.Context, chatID uuid.UUID) error
}

// UserRepository handles user data.
type UserRepository interface {
	Create(ctx context.Context, email, displayName, passwordHash string) (*models.User, error)

	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)

	// GetByEmail is used for login and signup duplicate checks.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// Repositories is a set of repositories bound to one database handle: either the
// shared pool, or a single transaction.
type Repositories struct {
	Channels     ChannelRepository
	Chats        ChatRepository
	Messages     MessageRepository
	ChatMessages ChatMessageRepository
	Users        UserRepository
}

// Store hands out repositories. WithTx runs fn against repositories bound to one
// transaction; the transaction commits when fn returns nil and rolls back otherwise.
// When WithTx returns nil the changes are durable.
type Store interface {
	Repos() Repositories
	WithTx(ctx context.Context, fn func(Repositories) error) error
}
