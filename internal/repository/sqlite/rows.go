package sqlite

import (
	"time"

	"github.com/asjjun/naejango/internal/models"
	"github.com/google/uuid"
)

type userRow struct {
	ID           uuid.UUID `gorm:"type:text;primaryKey"`
	Email        string    `gorm:"uniqueIndex;not null"`
	DisplayName  string    `gorm:"not null"`
	Role         string    `gorm:"not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time
}

func (userRow) TableName() string { return "users" }

func (r userRow) model() *models.User {
	return &models.User{
		ID:           r.ID,
		Email:        r.Email,
		DisplayName:  r.DisplayName,
		Role:         models.Role(r.Role),
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
	}
}

type channelRow struct {
	ID                uuid.UUID  `gorm:"type:text;primaryKey"`
	ChannelType       string     `gorm:"not null"`
	IsClosed          bool       `gorm:"not null"`
	OwnerID           *uuid.UUID `gorm:"type:text"`
	ItemID            *int64     `gorm:"index"`
	DefaultTitle      *string
	ParticipantsCount *int
	ChannelLimit      *int
	LastMessageAt     *time.Time
	CreatedAt         time.Time
}

func (channelRow) TableName() string { return "channels" }

func (r channelRow) model() models.Channel {
	return models.ChannelRecord{
		ID:                r.ID,
		ChannelType:       models.ChannelType(r.ChannelType),
		IsClosed:          r.IsClosed,
		OwnerID:           r.OwnerID,
		ItemID:            r.ItemID,
		DefaultTitle:      r.DefaultTitle,
		ParticipantsCount: r.ParticipantsCount,
		ChannelLimit:      r.ChannelLimit,
		LastMessageAt:     r.LastMessageAt,
		CreatedAt:         r.CreatedAt,
	}.Channel()
}

type chatRow struct {
	ID        uuid.UUID `gorm:"type:text;primaryKey"`
	OwnerID   uuid.UUID `gorm:"type:text;not null;index;uniqueIndex:idx_chats_channel_owner,priority:2"`
	ChannelID uuid.UUID `gorm:"type:text;not null;uniqueIndex:idx_chats_channel_owner,priority:1"`
	Title     string    `gorm:"not null"`
	CreatedAt time.Time
}

func (chatRow) TableName() string { return "chats" }

func (r chatRow) model() *models.Chat {
	return &models.Chat{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		ChannelID: r.ChannelID,
		Title:     r.Title,
		CreatedAt: r.CreatedAt,
	}
}

type messageRow struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	ChannelID   uuid.UUID `gorm:"type:text;not null;index"`
	SenderID    uuid.UUID `gorm:"type:text;not null"`
	MessageType string    `gorm:"not null"`
	Content     string    `gorm:"not null"`
	CreatedAt   time.Time
}

func (messageRow) TableName() string { return "messages" }

func (r messageRow) model() models.Message {
	return models.Message{
		ID:          r.ID,
		ChannelID:   r.ChannelID,
		SenderID:    r.SenderID,
		MessageType: models.MessageType(r.MessageType),
		Content:     r.Content,
		CreatedAt:   r.CreatedAt,
	}
}

type chatMessageRow struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	ChatID    uuid.UUID `gorm:"type:text;not null;index"`
	MessageID int64     `gorm:"not null"`
	IsRead    bool      `gorm:"not null"`
}

func (chatMessageRow) TableName() string { return "chat_messages" }
