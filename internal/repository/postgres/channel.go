package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asjjun/naejango/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ChannelStore struct {
	db DBTX
}

func NewChannelStore(db DBTX) *ChannelStore {
	return &ChannelStore{db: db}
}

const channelColumns = `
	c.id, c.channel_type, c.is_closed, c.owner_id, c.item_id, c.default_title,
	c.participants_count, c.channel_limit, c.last_message_at, c.created_at`

func scanChannel(row pgx.Row) (models.Channel, error) {
	var r models.ChannelRecord
	err := row.Scan(
		&r.ID,
		&r.ChannelType,
		&r.IsClosed,
		&r.OwnerID,
		&r.ItemID,
		&r.DefaultTitle,
		&r.ParticipantsCount,
		&r.ChannelLimit,
		&r.LastMessageAt,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	ch := r.Channel()
	if ch == nil {
		return nil, fmt.Errorf("unknown channel type %q", r.ChannelType)
	}
	return ch, nil
}

func (s *ChannelStore) findOne(ctx context.Context, op, query string, args ...any) (models.Channel, error) {
	ch, err := scanChannel(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ch, nil
}

func (s *ChannelStore) FindByID(ctx context.Context, channelID uuid.UUID) (models.Channel, error) {
	query := `SELECT` + channelColumns + `
		FROM channels c
		WHERE c.id = $1`
	return s.findOne(ctx, "get channel", query, channelID)
}

func (s *ChannelStore) FindByChatID(ctx context.Context, chatID uuid.UUID) (models.Channel, error) {
	query := `SELECT` + channelColumns + `
		FROM channels c
		JOIN chats ch ON ch.channel_id = c.id
		WHERE ch.id = $1`
	return s.findOne(ctx, "get channel by chat", query, chatID)
}

func (s *ChannelStore) FindGroupByItemID(ctx context.Context, itemID int64) (*models.GroupChannel, error) {
	query := `SELECT` + channelColumns + `
		FROM channels c
		WHERE c.item_id = $1 AND c.channel_type = 'GROUP'`
	ch, err := s.findOne(ctx, "get group channel by item", query, itemID)
	if err != nil || ch == nil {
		return nil, err
	}
	return ch.(*models.GroupChannel), nil
}

func (s *ChannelStore) FindPrivateBetween(ctx context.Context, userA, userB uuid.UUID) (*models.PrivateChannel, error) {
	query := `SELECT` + channelColumns + `
		FROM channels c
		JOIN chats a ON a.channel_id = c.id AND a.owner_id = $1
		JOIN chats b ON b.channel_id = c.id AND b.owner_id = $2
		WHERE c.channel_type = 'PRIVATE'
		LIMIT 1`
	ch, err := s.findOne(ctx, "get private channel", query, userA, userB)
	if err != nil || ch == nil {
		return nil, err
	}
	return ch.(*models.PrivateChannel), nil
}

func (s *ChannelStore) CreatePrivate(ctx context.Context) (*models.PrivateChannel, error) {
	query := `
		INSERT INTO channels (channel_type, is_closed, created_at)
		VALUES ('PRIVATE', false, now())
		RETURNING id, is_closed, created_at`

	var ch models.PrivateChannel
	err := s.db.QueryRow(ctx, query).Scan(&ch.ID, &ch.IsClosed, &ch.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert private channel: %w", err)
	}
	return &ch, nil
}

func (s *ChannelStore) CreateGroup(ctx context.Context, ownerID uuid.UUID, itemID int64, defaultTitle string, limit int) (*models.GroupChannel, error) {
	query := `
		INSERT INTO channels (channel_type, is_closed, owner_id, item_id, default_title,
			participants_count, channel_limit, created_at)
		VALUES ('GROUP', false, $1, $2, $3, 1, $4, now())
		RETURNING id, is_closed, participants_count, created_at`

	ch := models.GroupChannel{
		OwnerID:      ownerID,
		ItemID:       itemID,
		DefaultTitle: defaultTitle,
		ChannelLimit: limit,
	}
	err := s.db.QueryRow(ctx, query, ownerID, itemID, defaultTitle, limit).Scan(
		&ch.ID,
		&ch.IsClosed,
		&ch.ParticipantsCount,
		&ch.CreatedAt,
	)
	if err != nil {
		return nil, insertError("insert group channel", err)
	}
	return &ch, nil
}

func (s *ChannelStore) IncrementParticipants(ctx context.Context, channelID uuid.UUID) (bool, error) {
	// Check and increment in one statement: concurrent joiners serialize on the row
	// lock and the second one re-evaluates the WHERE clause against the new count.
	query := `
		UPDATE channels
		SET participants_count = participants_count + 1
		WHERE id = $1
			AND channel_type = 'GROUP'
			AND NOT is_closed
			AND participants_count < channel_limit`

	tag, err := s.db.Exec(ctx, query, channelID)
	if err != nil {
		return false, fmt.Errorf("increment participants: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *ChannelStore) DecrementParticipants(ctx context.Context, channelID uuid.UUID) (int, error) {
	query := `
		UPDATE channels
		SET participants_count = GREATEST(participants_count - 1, 0)
		WHERE id = $1 AND channel_type = 'GROUP'
		RETURNING participants_count`

	var count int
	if err := s.db.QueryRow(ctx, query, channelID).Scan(&count); err != nil {
		return 0, fmt.Errorf("decrement participants: %w", err)
	}
	return count, nil
}

func (s *ChannelStore) Close(ctx context.Context, channelID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `UPDATE channels SET is_closed = true WHERE id = $1`, channelID)
	if err != nil {
		return fmt.Errorf("close channel: %w", err)
	}
	return nil
}

func (s *ChannelStore) TouchLastMessage(ctx context.Context, channelID uuid.UUID, at time.Time) error {
	_, err := s.db.Exec(ctx, `UPDATE channels SET last_message_at = $2 WHERE id = $1`, channelID, at)
	if err != nil {
		return fmt.Errorf("touch channel: %w", err)
	}
	return nil
}

func (s *ChannelStore) Delete(ctx context.Context, channelID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM channels WHERE id = $1`, channelID)
	if err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	return nil
}
