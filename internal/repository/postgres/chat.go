package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/asjjun/naejango/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ChatStore struct {
	db DBTX
}

func NewChatStore(db DBTX) *ChatStore {
	return &ChatStore{db: db}
}

func (s *ChatStore) Create(ctx context.Context, ownerID, channelID uuid.UUID, title string) (*models.Chat, error) {
	query := `
		INSERT INTO chats (owner_id, channel_id, title, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, owner_id, channel_id, title, created_at`

	var c models.Chat
	err := s.db.QueryRow(ctx, query, ownerID, channelID, title).Scan(
		&c.ID,
		&c.OwnerID,
		&c.ChannelID,
		&c.Title,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, insertError("insert chat", err)
	}
	return &c, nil
}

func (s *ChatStore) findOne(ctx context.Context, op, query string, args ...any) (*models.Chat, error) {
	var c models.Chat
	err := s.db.QueryRow(ctx, query, args...).Scan(
		&c.ID,
		&c.OwnerID,
		&c.ChannelID,
		&c.Title,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &c, nil
}

func (s *ChatStore) FindByID(ctx context.Context, chatID uuid.UUID) (*models.Chat, error) {
	query := `
		SELECT id, owner_id, channel_id, title, created_at
		FROM chats
		WHERE id = $1`
	return s.findOne(ctx, "get chat", query, chatID)
}

func (s *ChatStore) FindByChannelAndOwner(ctx context.Context, channelID, ownerID uuid.UUID) (*models.Chat, error) {
	query := `
		SELECT id, owner_id, channel_id, title, created_at
		FROM chats
		WHERE channel_id = $1 AND owner_id = $2`
	return s.findOne(ctx, "get chat by channel and owner", query, channelID, ownerID)
}

func (s *ChatStore) FindOtherInPrivateChannel(ctx context.Context, channelID, excludeChatID uuid.UUID) (*models.Chat, error) {
	query := `
		SELECT ch.id, ch.owner_id, ch.channel_id, ch.title, ch.created_at
		FROM chats ch
		JOIN channels c ON c.id = ch.channel_id
		WHERE ch.channel_id = $1 AND ch.id <> $2 AND c.channel_type = 'PRIVATE'
		LIMIT 1`
	return s.findOne(ctx, "get other private chat", query, channelID, excludeChatID)
}

func (s *ChatStore) ListByChannel(ctx context.Context, channelID uuid.UUID) ([]models.Chat, error) {
	query := `
		SELECT id, owner_id, channel_id, title, created_at
		FROM chats
		WHERE channel_id = $1
		ORDER BY created_at`

	rows, err := s.db.Query(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	chats := make([]models.Chat, 0)
	for rows.Next() {
		var c models.Chat
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.ChannelID, &c.Title, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}
	return chats, nil
}

func (s *ChatStore) ListByOwnerRecent(ctx context.Context, ownerID uuid.UUID, page, size int) (models.Page[models.ChatInfo], error) {
	result := models.Page[models.ChatInfo]{Items: make([]models.ChatInfo, 0), Page: page, Size: size}

	err := s.db.QueryRow(ctx, `SELECT count(*) FROM chats WHERE owner_id = $1`, ownerID).Scan(&result.Total)
	if err != nil {
		return result, fmt.Errorf("count chats: %w", err)
	}
	if result.Total == 0 {
		return result, nil
	}

	// Activity is the channel's last message, or the chat's creation when the
	// channel has no messages yet.
	query := `
		SELECT ch.id, ch.channel_id, c.channel_type, ch.title,
			COALESCE((
				SELECT m.content FROM messages m
				WHERE m.channel_id = ch.channel_id
				ORDER BY m.id DESC LIMIT 1
			), '') AS last_message,
			COALESCE(c.last_message_at, ch.created_at) AS last_activity,
			(
				SELECT count(*) FROM chat_messages cm
				WHERE cm.chat_id = ch.id AND NOT cm.is_read
			) AS unread_count
		FROM chats ch
		JOIN channels c ON c.id = ch.channel_id
		WHERE ch.owner_id = $1
		ORDER BY last_activity DESC, ch.id
		LIMIT $2 OFFSET $3`

	rows, err := s.db.Query(ctx, query, ownerID, size, page*size)
	if err != nil {
		return result, fmt.Errorf("list chats by owner: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var info models.ChatInfo
		if err := rows.Scan(
			&info.ChatID,
			&info.ChannelID,
			&info.ChannelType,
			&info.Title,
			&info.LastMessage,
			&info.LastActivity,
			&info.UnreadCount,
		); err != nil {
			return result, fmt.Errorf("scan chat info: %w", err)
		}
		result.Items = append(result.Items, info)
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("iterate chat info: %w", err)
	}
	return result, nil
}

func (s *ChatStore) UpdateTitle(ctx context.Context, chatID uuid.UUID, title string) error {
	_, err := s.db.Exec(ctx, `UPDATE chats SET title = $2 WHERE id = $1`, chatID, title)
	if err != nil {
		return fmt.Errorf("update chat title: %w", err)
	}
	return nil
}

func (s *ChatStore) Delete(ctx context.Context, chatID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM chats WHERE id = $1`, chatID)
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	return nil
}
