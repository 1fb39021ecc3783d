package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/asjjun/naejango/internal/models"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

type ChatStore struct {
	db *gorm.DB
}

func (s *ChatStore) Create(ctx context.Context, ownerID, channelID uuid.UUID, title string) (*models.Chat, error) {
	row := chatRow{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		ChannelID: channelID,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, insertError("insert chat", err)
	}
	return row.model(), nil
}

func (s *ChatStore) take(ctx context.Context, op string, q func(*gorm.DB) *gorm.DB) (*models.Chat, error) {
	var row chatRow
	err := q(s.db.WithContext(ctx).Model(&chatRow{})).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return row.model(), nil
}

func (s *ChatStore) FindByID(ctx context.Context, chatID uuid.UUID) (*models.Chat, error) {
	return s.take(ctx, "get chat", func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", chatID)
	})
}

func (s *ChatStore) FindByChannelAndOwner(ctx context.Context, channelID, ownerID uuid.UUID) (*models.Chat, error) {
	return s.take(ctx, "get chat by channel and owner", func(db *gorm.DB) *gorm.DB {
		return db.Where("channel_id = ? AND owner_id = ?", channelID, ownerID)
	})
}

func (s *ChatStore) FindOtherInPrivateChannel(ctx context.Context, channelID, excludeChatID uuid.UUID) (*models.Chat, error) {
	return s.take(ctx, "get other private chat", func(db *gorm.DB) *gorm.DB {
		return db.Select("chats.*").
			Joins("JOIN channels ON channels.id = chats.channel_id").
			Where("chats.channel_id = ? AND chats.id <> ? AND channels.channel_type = ?",
				channelID, excludeChatID, string(models.ChannelTypePrivate))
	})
}

func (s *ChatStore) ListByChannel(ctx context.Context, channelID uuid.UUID) ([]models.Chat, error) {
	var rows []chatRow
	err := s.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Order("created_at").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return lo.Map(rows, func(r chatRow, _ int) models.Chat { return *r.model() }), nil
}

// ListByOwnerRecent builds the page in memory: the embedded store holds one
// process's data, and SQLite's untyped expression columns do not scan cleanly
// into time.Time.
func (s *ChatStore) ListByOwnerRecent(ctx context.Context, ownerID uuid.UUID, page, size int) (models.Page[models.ChatInfo], error) {
	result := models.Page[models.ChatInfo]{Items: make([]models.ChatInfo, 0), Page: page, Size: size}
	db := s.db.WithContext(ctx)

	var chats []chatRow
	if err := db.Where("owner_id = ?", ownerID).Find(&chats).Error; err != nil {
		return result, fmt.Errorf("list chats by owner: %w", err)
	}
	result.Total = int64(len(chats))
	if len(chats) == 0 {
		return result, nil
	}

	var channels []channelRow
	channelIDs := lo.Map(chats, func(c chatRow, _ int) uuid.UUID { return c.ChannelID })
	if err := db.Where("id IN ?", channelIDs).Find(&channels).Error; err != nil {
		return result, fmt.Errorf("list channels for chats: %w", err)
	}
	byID := lo.KeyBy(channels, func(c channelRow) uuid.UUID { return c.ID })

	infos := make([]models.ChatInfo, 0, len(chats))
	for _, c := range chats {
		ch, ok := byID[c.ChannelID]
		if !ok {
			continue
		}
		info := models.ChatInfo{
			ChatID:       c.ID,
			ChannelID:    c.ChannelID,
			ChannelType:  models.ChannelType(ch.ChannelType),
			Title:        c.Title,
			LastActivity: c.CreatedAt,
		}
		if ch.LastMessageAt != nil {
			info.LastActivity = *ch.LastMessageAt
		}

		var last messageRow
		err := db.Where("channel_id = ?", c.ChannelID).Order("id DESC").Limit(1).Find(&last).Error
		if err != nil {
			return result, fmt.Errorf("last message: %w", err)
		}
		info.LastMessage = last.Content

		err = db.Model(&chatMessageRow{}).
			Where("chat_id = ? AND is_read = ?", c.ID, false).
			Count(&info.UnreadCount).Error
		if err != nil {
			return result, fmt.Errorf("count unread: %w", err)
		}
		infos = append(infos, info)
	}

	sort.SliceStable(infos, func(i, j int) bool {
		if !infos[i].LastActivity.Equal(infos[j].LastActivity) {
			return infos[i].LastActivity.After(infos[j].LastActivity)
		}
		return infos[i].ChatID.String() < infos[j].ChatID.String()
	})

	start := page * size
	if start >= len(infos) {
		return result, nil
	}
	end := min(start+size, len(infos))
	result.Items = infos[start:end]
	return result, nil
}

func (s *ChatStore) UpdateTitle(ctx context.Context, chatID uuid.UUID, title string) error {
	err := s.db.WithContext(ctx).Model(&chatRow{}).
		Where("id = ?", chatID).
		UpdateColumn("title", title).Error
	if err != nil {
		return fmt.Errorf("update chat title: %w", err)
	}
	return nil
}

func (s *ChatStore) Delete(ctx context.Context, chatID uuid.UUID) error {
	if err := s.db.WithContext(ctx).Where("id = ?", chatID).Delete(&chatRow{}).Error; err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	return nil
}
