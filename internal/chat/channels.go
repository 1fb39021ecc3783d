package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/asjjun/naejango/internal/apperr"
	"github.com/asjjun/naejango/internal/events"
	"github.com/asjjun/naejango/internal/models"
	"github.com/asjjun/naejango/internal/repository"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type ChannelResult struct {
	Created   bool      `json:"created"`
	ChannelID uuid.UUID `json:"channel_id"`
	// ChatID is the caller's chat in the channel, or uuid.Nil when they hold none.
	ChatID uuid.UUID `json:"chat_id"`
}

type GroupChannelInput struct {
	ItemID       int64  `validate:"gt=0"`
	DefaultTitle string `validate:"required,max=50"`
	// ChannelLimit of 0 means the configured default.
	ChannelLimit int `validate:"min=2,max=100"`
}

// CreateGroupChannel opens the group channel for an item, with the owner as its
// first participant. An item has at most one group channel; if it exists it is
// returned unchanged.
func (s *Service) CreateGroupChannel(ctx context.Context, ownerID uuid.UUID, in GroupChannelInput) (res ChannelResult, err error) {
	ctx, span := s.startSpan(ctx, "CreateGroupChannel", attribute.Int64("item_id", in.ItemID))
	defer func() { endSpan(span, err) }()

	in.DefaultTitle = strings.TrimSpace(in.DefaultTitle)
	if in.ChannelLimit == 0 {
		in.ChannelLimit = s.defaultLimit
	}
	if err := checkInput(in); err != nil {
		return ChannelResult{}, err
	}

	var enter *models.Message
	err = s.store.WithTx(ctx, func(r repository.Repositories) error {
		owner, err := r.Users.GetByID(ctx, ownerID)
		if err != nil {
			return err
		}
		if owner == nil {
			return apperr.ErrUserNotFound
		}

		existing, err := r.Channels.FindGroupByItemID(ctx, in.ItemID)
		if err != nil {
			return err
		}
		if existing != nil {
			res = ChannelResult{Created: false, ChannelID: existing.ID}
			chat, err := r.Chats.FindByChannelAndOwner(ctx, existing.ID, ownerID)
			if err != nil {
				return err
			}
			if chat != nil {
				res.ChatID = chat.ID
			}
			return nil
		}

		group, err := r.Channels.CreateGroup(ctx, ownerID, in.ItemID, in.DefaultTitle, in.ChannelLimit)
		if err != nil {
			return err
		}
		chat, err := r.Chats.Create(ctx, ownerID, group.ID, in.DefaultTitle)
		if err != nil {
			return err
		}
		enter, err = recordMessage(ctx, r, group.ID, ownerID, models.MessageTypeEnter, EnterContent, chat.ID)
		if err != nil {
			return err
		}
		res = ChannelResult{Created: true, ChannelID: group.ID, ChatID: chat.ID}
		return nil
	})
	if errors.Is(err, repository.ErrDuplicate) {
		// Another request created the item's channel after our lookup.
		return s.existingGroup(ctx, in.ItemID, ownerID)
	}
	if err != nil {
		return ChannelResult{}, err
	}

	if res.Created {
		s.logger.Info("group channel created",
			zap.String("channel_id", res.ChannelID.String()),
			zap.Int64("item_id", in.ItemID),
			zap.Int("channel_limit", in.ChannelLimit),
		)
		s.publish(ctx, events.FromMessage(enter))
	}
	return res, nil
}

func (s *Service) existingGroup(ctx context.Context, itemID int64, ownerID uuid.UUID) (ChannelResult, error) {
	repos := s.store.Repos()
	group, err := repos.Channels.FindGroupByItemID(ctx, itemID)
	if err != nil {
		return ChannelResult{}, err
	}
	if group == nil {
		return ChannelResult{}, apperr.ErrChannelNotFound
	}
	res := ChannelResult{Created: false, ChannelID: group.ID}
	chat, err := repos.Chats.FindByChannelAndOwner(ctx, group.ID, ownerID)
	if err != nil {
		return ChannelResult{}, err
	}
	if chat != nil {
		res.ChatID = chat.ID
	}
	return res, nil
}

// StartPrivateChannel returns the private channel between userID and otherID,
// creating it with one chat per side when none exists. Each side's chat is titled
// with the other user's display name.
func (s *Service) StartPrivateChannel(ctx context.Context, userID, otherID uuid.UUID) (res ChannelResult, err error) {
	ctx, span := s.startSpan(ctx, "StartPrivateChannel")
	defer func() { endSpan(span, err) }()

	if userID == otherID {
		return ChannelResult{}, apperr.WithDetail(apperr.CodeInvalidInput, "cannot open a private channel with yourself")
	}

	err = s.store.WithTx(ctx, func(r repository.Repositories) error {
		me, err := r.Users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		other, err := r.Users.GetByID(ctx, otherID)
		if err != nil {
			return err
		}
		if me == nil || other == nil {
			return apperr.ErrUserNotFound
		}

		existing, err := r.Channels.FindPrivateBetween(ctx, userID, otherID)
		if err != nil {
			return err
		}
		if existing != nil {
			chat, err := r.Chats.FindByChannelAndOwner(ctx, existing.ID, userID)
			if err != nil {
				return err
			}
			res = ChannelResult{Created: false, ChannelID: existing.ID, ChatID: chat.ID}
			return nil
		}

		ch, err := r.Channels.CreatePrivate(ctx)
		if err != nil {
			return err
		}
		mine, err := r.Chats.Create(ctx, userID, ch.ID, other.DisplayName)
		if err != nil {
			return err
		}
		if _, err := r.Chats.Create(ctx, otherID, ch.ID, me.DisplayName); err != nil {
			return err
		}
		res = ChannelResult{Created: true, ChannelID: ch.ID, ChatID: mine.ID}
		return nil
	})
	if err != nil {
		return ChannelResult{}, err
	}
	if res.Created {
		s.logger.Info("private channel created", zap.String("channel_id", res.ChannelID.String()))
	}
	return res, nil
}

// CloseGroupChannel stops new joins. Only the channel owner may close it; members
// already in the channel are unaffected.
func (s *Service) CloseGroupChannel(ctx context.Context, userID, channelID uuid.UUID) (err error) {
	ctx, span := s.startSpan(ctx, "CloseGroupChannel", attribute.String("channel_id", channelID.String()))
	defer func() { endSpan(span, err) }()

	return s.store.WithTx(ctx, func(r repository.Repositories) error {
		ch, err := r.Channels.FindByID(ctx, channelID)
		if err != nil {
			return err
		}
		group, ok := ch.(*models.GroupChannel)
		if !ok {
			return apperr.ErrChannelNotFound
		}
		if group.OwnerID != userID {
			return apperr.ErrUnauthorizedModify
		}
		if group.IsClosed {
			return nil
		}
		return r.Channels.Close(ctx, channelID)
	})
}
