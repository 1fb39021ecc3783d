package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type ChatMessageStore struct {
	db DBTX
}

func NewChatMessageStore(db DBTX) *ChatMessageStore {
	return &ChatMessageStore{db: db}
}

func (s *ChatMessageStore) CreateForChats(ctx context.Context, messageID int64, chatIDs []uuid.UUID, readChatID uuid.UUID) error {
	if len(chatIDs) == 0 {
		return nil
	}
	// One statement for the whole fan-out.
	query := `
		INSERT INTO chat_messages (chat_id, message_id, is_read)
		SELECT chat_id, $1, chat_id = $3
		FROM unnest($2::uuid[]) AS t(chat_id)`

	_, err := s.db.Exec(ctx, query, messageID, chatIDs, readChatID)
	if err != nil {
		return fmt.Errorf("insert chat messages: %w", err)
	}
	return nil
}

func (s *ChatMessageStore) DeleteByChat(ctx context.Context, chatID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM chat_messages WHERE chat_id = $1`, chatID)
	if err != nil {
		return fmt.Errorf("delete chat messages: %w", err)
	}
	return nil
}

func (s *ChatMessageStore) ExistsByChat(ctx context.Context, chatID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM chat_messages
			WHERE chat_id = $1
		)`

	var exists bool
	if err := s.db.QueryRow(ctx, query, chatID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check chat messages: %w", err)
	}
	return exists, nil
}

func (s *ChatMessageStore) MarkRead(ctx context.Context, chatID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `UPDATE chat_messages SET is_read = true WHERE chat_id = $1 AND NOT is_read`, chatID)
	if err != nil {
		return fmt.Errorf("mark chat messages read: %w", err)
	}
	return nil
}
