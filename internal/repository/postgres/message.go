package postgres

import (
	"context"
	"fmt"

	"github.com/asjjun/naejango/internal/models"
	"github.com/google/uuid"
)

type MessageStore struct {
	db DBTX
}

func NewMessageStore(db DBTX) *MessageStore {
	return &MessageStore{db: db}
}

func (s *MessageStore) Create(ctx context.Context, channelID, senderID uuid.UUID, messageType models.MessageType, content string) (*models.Message, error) {
	// Messages use bigserial, so we don't pass an ID.
	query := `
		INSERT INTO messages (channel_id, sender_id, message_type, content, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id, channel_id, sender_id, message_type, content, created_at`

	var msg models.Message
	err := s.db.QueryRow(ctx, query, channelID, senderID, string(messageType), content).Scan(
		&msg.ID,
		&msg.ChannelID,
		&msg.SenderID,
		&msg.MessageType,
		&msg.Content,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &msg, nil
}

func (s *MessageStore) ListByChannel(ctx context.Context, channelID uuid.UUID, before int64, limit int) ([]models.Message, error) {
	// before=0 → first page (newest messages).
	// before=42 → messages older than ID 42.
	var query string
	var args []any

	if before > 0 {
		query = `
			SELECT id, channel_id, sender_id, message_type, content, created_at
			FROM messages
			WHERE channel_id = $1 AND id < $2
			ORDER BY id DESC
			LIMIT $3`
		args = []any{channelID, before, limit}
	} else {
		query = `
			SELECT id, channel_id, sender_id, message_type, content, created_at
			FROM messages
			WHERE channel_id = $1
			ORDER BY id DESC
			LIMIT $2`
		args = []any{channelID, limit}
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.ChannelID,
			&msg.SenderID,
			&msg.MessageType,
			&msg.Content,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

func (s *MessageStore) DeleteByChannel(ctx context.Context, channelID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM messages WHERE channel_id = $1`, channelID)
	if err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	return nil
}
