package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asjjun/naejango/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChannelStore struct {
	db *gorm.DB
}

func (s *ChannelStore) take(ctx context.Context, op string, q func(*gorm.DB) *gorm.DB) (models.Channel, error) {
	var row channelRow
	err := q(s.db.WithContext(ctx).Model(&channelRow{})).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ch := row.model()
	if ch == nil {
		return nil, fmt.Errorf("%s: unknown channel type %q", op, row.ChannelType)
	}
	return ch, nil
}

func (s *ChannelStore) FindByID(ctx context.Context, channelID uuid.UUID) (models.Channel, error) {
	return s.take(ctx, "get channel", func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", channelID)
	})
}

func (s *ChannelStore) FindByChatID(ctx context.Context, chatID uuid.UUID) (models.Channel, error) {
	return s.take(ctx, "get channel by chat", func(db *gorm.DB) *gorm.DB {
		return db.Select("channels.*").
			Joins("JOIN chats ON chats.channel_id = channels.id").
			Where("chats.id = ?", chatID)
	})
}

func (s *ChannelStore) FindGroupByItemID(ctx context.Context, itemID int64) (*models.GroupChannel, error) {
	ch, err := s.take(ctx, "get group channel by item", func(db *gorm.DB) *gorm.DB {
		return db.Where("item_id = ? AND channel_type = ?", itemID, string(models.ChannelTypeGroup))
	})
	if err != nil || ch == nil {
		return nil, err
	}
	return ch.(*models.GroupChannel), nil
}

func (s *ChannelStore) FindPrivateBetween(ctx context.Context, userA, userB uuid.UUID) (*models.PrivateChannel, error) {
	ch, err := s.take(ctx, "get private channel", func(db *gorm.DB) *gorm.DB {
		return db.Select("channels.*").
			Joins("JOIN chats a ON a.channel_id = channels.id AND a.owner_id = ?", userA).
			Joins("JOIN chats b ON b.channel_id = channels.id AND b.owner_id = ?", userB).
			Where("channels.channel_type = ?", string(models.ChannelTypePrivate))
	})
	if err != nil || ch == nil {
		return nil, err
	}
	return ch.(*models.PrivateChannel), nil
}

func (s *ChannelStore) CreatePrivate(ctx context.Context) (*models.PrivateChannel, error) {
	row := channelRow{
		ID:          uuid.New(),
		ChannelType: string(models.ChannelTypePrivate),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("insert private channel: %w", err)
	}
	return row.model().(*models.PrivateChannel), nil
}

func (s *ChannelStore) CreateGroup(ctx context.Context, ownerID uuid.UUID, itemID int64, defaultTitle string, limit int) (*models.GroupChannel, error) {
	count := 1
	row := channelRow{
		ID:                uuid.New(),
		ChannelType:       string(models.ChannelTypeGroup),
		OwnerID:           &ownerID,
		ItemID:            &itemID,
		DefaultTitle:      &defaultTitle,
		ParticipantsCount: &count,
		ChannelLimit:      &limit,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, insertError("insert group channel", err)
	}
	return row.model().(*models.GroupChannel), nil
}

func (s *ChannelStore) IncrementParticipants(ctx context.Context, channelID uuid.UUID) (bool, error) {
	res := s.db.WithContext(ctx).Model(&channelRow{}).
		Where("id = ? AND channel_type = ? AND is_closed = ? AND participants_count < channel_limit",
			channelID, string(models.ChannelTypeGroup), false).
		UpdateColumn("participants_count", gorm.Expr("participants_count + 1"))
	if res.Error != nil {
		return false, fmt.Errorf("increment participants: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *ChannelStore) DecrementParticipants(ctx context.Context, channelID uuid.UUID) (int, error) {
	db := s.db.WithContext(ctx)
	err := db.Model(&channelRow{}).
		Where("id = ? AND channel_type = ?", channelID, string(models.ChannelTypeGroup)).
		UpdateColumn("participants_count", gorm.Expr("MAX(participants_count - 1, 0)")).Error
	if err != nil {
		return 0, fmt.Errorf("decrement participants: %w", err)
	}

	var count int
	err = db.Model(&channelRow{}).
		Where("id = ?", channelID).
		Select("participants_count").
		Scan(&count).Error
	if err != nil {
		return 0, fmt.Errorf("read participants: %w", err)
	}
	return count, nil
}

func (s *ChannelStore) Close(ctx context.Context, channelID uuid.UUID) error {
	err := s.db.WithContext(ctx).Model(&channelRow{}).
		Where("id = ?", channelID).
		UpdateColumn("is_closed", true).Error
	if err != nil {
		return fmt.Errorf("close channel: %w", err)
	}
	return nil
}

func (s *ChannelStore) TouchLastMessage(ctx context.Context, channelID uuid.UUID, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&channelRow{}).
		Where("id = ?", channelID).
		UpdateColumn("last_message_at", at.UTC()).Error
	if err != nil {
		return fmt.Errorf("touch channel: %w", err)
	}
	return nil
}

func (s *ChannelStore) Delete(ctx context.Context, channelID uuid.UUID) error {
	err := s.db.WithContext(ctx).Where("id = ?", channelID).Delete(&channelRow{}).Error
	if err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	return nil
}
