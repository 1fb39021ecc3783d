package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/asjjun/naejango/internal/models"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

type MessageStore struct {
	db *gorm.DB
}

func (s *MessageStore) Create(ctx context.Context, channelID, senderID uuid.UUID, messageType models.MessageType, content string) (*models.Message, error) {
	row := messageRow{
		ChannelID:   channelID,
		SenderID:    senderID,
		MessageType: string(messageType),
		Content:     content,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	msg := row.model()
	return &msg, nil
}

func (s *MessageStore) ListByChannel(ctx context.Context, channelID uuid.UUID, before int64, limit int) ([]models.Message, error) {
	q := s.db.WithContext(ctx).Where("channel_id = ?", channelID)
	if before > 0 {
		q = q.Where("id < ?", before)
	}

	var rows []messageRow
	if err := q.Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return lo.Map(rows, func(r messageRow, _ int) models.Message { return r.model() }), nil
}

func (s *MessageStore) DeleteByChannel(ctx context.Context, channelID uuid.UUID) error {
	if err := s.db.WithContext(ctx).Where("channel_id = ?", channelID).Delete(&messageRow{}).Error; err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	return nil
}

type ChatMessageStore struct {
	db *gorm.DB
}

func (s *ChatMessageStore) CreateForChats(ctx context.Context, messageID int64, chatIDs []uuid.UUID, readChatID uuid.UUID) error {
	if len(chatIDs) == 0 {
		return nil
	}
	rows := lo.Map(chatIDs, func(id uuid.UUID, _ int) chatMessageRow {
		return chatMessageRow{ChatID: id, MessageID: messageID, IsRead: id == readChatID}
	})
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("insert chat messages: %w", err)
	}
	return nil
}

func (s *ChatMessageStore) DeleteByChat(ctx context.Context, chatID uuid.UUID) error {
	if err := s.db.WithContext(ctx).Where("chat_id = ?", chatID).Delete(&chatMessageRow{}).Error; err != nil {
		return fmt.Errorf("delete chat messages: %w", err)
	}
	return nil
}

func (s *ChatMessageStore) ExistsByChat(ctx context.Context, chatID uuid.UUID) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&chatMessageRow{}).
		Where("chat_id = ?", chatID).
		Limit(1).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check chat messages: %w", err)
	}
	return n > 0, nil
}

func (s *ChatMessageStore) MarkRead(ctx context.Context, chatID uuid.UUID) error {
	err := s.db.WithContext(ctx).Model(&chatMessageRow{}).
		Where("chat_id = ? AND is_read = ?", chatID, false).
		UpdateColumn("is_read", true).Error
	if err != nil {
		return fmt.Errorf("mark chat messages read: %w", err)
	}
	return nil
}
