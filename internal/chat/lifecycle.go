package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/asjjun/naejango/internal/apperr"
	"github.com/asjjun/naejango/internal/events"
	"github.com/asjjun/naejango/internal/models"
	"github.com/asjjun/naejango/internal/observ"
	"github.com/asjjun/naejango/internal/repository"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type JoinResult struct {
	Created bool      `json:"created"`
	ChatID  uuid.UUID `json:"chat_id"`
}

// JoinGroupChannel adds userID to a group channel.
//
// The order of the checks matters:
//  1. The channel must exist and be a group channel.
//  2. A closed channel refuses everyone, members included.
//  3. A full channel refuses everyone, members included.
//  4. Only then does an existing member get their chat back (created=false).
//  5. Otherwise a chat is created, a seat taken, and an ENTER recorded.
//
// Step 3 reads a count that may already be stale when step 5 runs. The seat is
// therefore taken with a conditional update (count < limit AND NOT closed); when
// it matches no row another request won the last seat, or closed the channel,
// between our read and our write. The transaction rolls back the new chat and
// the caller gets the refusal that applies now.
//
// Two joins by the same user can also race past step 4. The unique index on
// (channel, owner) lets only one insert through; the other sees ErrDuplicate and
// answers with the winner's chat.
func (s *Service) JoinGroupChannel(ctx context.Context, channelID, userID uuid.UUID) (res JoinResult, err error) {
	ctx, span := s.startSpan(ctx, "JoinGroupChannel",
		attribute.String("channel_id", channelID.String()),
		attribute.String("user_id", userID.String()))
	defer func() { endSpan(span, err) }()

	var enter *models.Message
	err = s.store.WithTx(ctx, func(r repository.Repositories) error {
		ch, err := r.Channels.FindByID(ctx, channelID)
		if err != nil {
			return err
		}
		group, ok := ch.(*models.GroupChannel)
		if !ok {
			return apperr.ErrChannelNotFound
		}

		if group.IsClosed {
			return apperr.ErrChannelIsClosed
		}
		if group.IsFull() {
			return apperr.ErrChannelIsFull
		}

		existing, err := r.Chats.FindByChannelAndOwner(ctx, channelID, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			res = JoinResult{Created: false, ChatID: existing.ID}
			return nil
		}

		chat, err := r.Chats.Create(ctx, userID, channelID, group.DefaultTitle)
		if err != nil {
			return err
		}

		joined, err := r.Channels.IncrementParticipants(ctx, channelID)
		if err != nil {
			return err
		}
		if !joined {
			// Lost a race: someone filled or closed the channel after it was read.
			return joinRefusal(ctx, r, channelID)
		}

		enter, err = recordMessage(ctx, r, channelID, userID, models.MessageTypeEnter, EnterContent, chat.ID)
		if err != nil {
			return err
		}
		res = JoinResult{Created: true, ChatID: chat.ID}
		return nil
	})
	if errors.Is(err, repository.ErrDuplicate) {
		// The failed transaction is gone; read the winner's chat outside it.
		existing, ferr := s.store.Repos().Chats.FindByChannelAndOwner(ctx, channelID, userID)
		if ferr != nil {
			return JoinResult{}, ferr
		}
		if existing != nil {
			res, err = JoinResult{Created: false, ChatID: existing.ID}, nil
		}
	}
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrChannelIsFull):
			observ.ChatJoins.WithLabelValues(observ.JoinFull).Inc()
		case errors.Is(err, apperr.ErrChannelIsClosed):
			observ.ChatJoins.WithLabelValues(observ.JoinClosed).Inc()
		}
		return JoinResult{}, err
	}

	if !res.Created {
		observ.ChatJoins.WithLabelValues(observ.JoinExisting).Inc()
		return res, nil
	}
	observ.ChatJoins.WithLabelValues(observ.JoinCreated).Inc()
	s.logger.Info("user joined group channel",
		zap.String("channel_id", channelID.String()),
		zap.String("user_id", userID.String()),
		zap.String("chat_id", res.ChatID.String()),
	)
	s.publish(ctx, events.FromMessage(enter))
	return res, nil
}

func joinRefusal(ctx context.Context, r repository.Repositories, channelID uuid.UUID) error {
	ch, err := r.Channels.FindByID(ctx, channelID)
	if err != nil {
		return err
	}
	if ch == nil {
		return apperr.ErrChannelNotFound
	}
	if ch.Base().IsClosed {
		return apperr.ErrChannelIsClosed
	}
	return apperr.ErrChannelIsFull
}

// MyChatList pages userID's chats, most recently active first. page is zero-based.
func (s *Service) MyChatList(ctx context.Context, userID uuid.UUID, page, size int) (models.Page[models.ChatInfo], error) {
	in := struct {
		Page int `validate:"gte=0"`
		Size int `validate:"min=1,max=100"`
	}{page, size}
	if err := checkInput(in); err != nil {
		return models.Page[models.ChatInfo]{}, err
	}
	return s.store.Repos().Chats.ListByOwnerRecent(ctx, userID, page, size)
}

// MyChatID returns the id of userID's chat in channelID.
func (s *Service) MyChatID(ctx context.Context, channelID, userID uuid.UUID) (uuid.UUID, error) {
	chat, err := s.store.Repos().Chats.FindByChannelAndOwner(ctx, channelID, userID)
	if err != nil {
		return uuid.Nil, err
	}
	if chat == nil {
		return uuid.Nil, apperr.ErrChatNotFound
	}
	return chat.ID, nil
}

// ChangeChatTitle renames a chat. Only its owner may do so; the title is trimmed
// and must be 1 to 50 characters.
func (s *Service) ChangeChatTitle(ctx context.Context, userID, chatID uuid.UUID, title string) (err error) {
	ctx, span := s.startSpan(ctx, "ChangeChatTitle", attribute.String("chat_id", chatID.String()))
	defer func() { endSpan(span, err) }()

	return s.store.WithTx(ctx, func(r repository.Repositories) error {
		chat, err := r.Chats.FindByID(ctx, chatID)
		if err != nil {
			return err
		}
		if chat == nil {
			return apperr.ErrChatNotFound
		}
		if chat.OwnerID != userID {
			return apperr.ErrUnauthorizedModify
		}

		in := struct {
			Title string `validate:"required,max=50"`
		}{strings.TrimSpace(title)}
		if err := checkInput(in); err != nil {
			return err
		}
		return r.Chats.UpdateTitle(ctx, chatID, in.Title)
	})
}

// DeleteChat removes userID's chat from channelID. Afterwards the user can no
// longer read or receive the channel.
//
// What happens to the channel depends on its variant:
//   - Private: the caller's chat always goes. The channel, its messages and the
//     other side's chat go too when the other side has no chat or no history
//     left. The remaining party is not told; a LEAVE event only tells the live
//     transport to drop the caller's subscriptions.
//   - Group: the caller's seat is released. The last member out deletes the
//     channel and its history; otherwise a durable EXIT message is written for
//     the members who stay.
//
// Either way an event goes out after commit, because reading is gated by the
// chat row but receiving is gated by the websocket subscription, and only the
// event reaches the latter.
func (s *Service) DeleteChat(ctx context.Context, channelID, userID uuid.UUID) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteChat",
		attribute.String("channel_id", channelID.String()),
		attribute.String("user_id", userID.String()))
	defer func() { endSpan(span, err) }()

	var (
		channelType models.ChannelType
		deleted     bool
		notice      *events.Event
	)
	err = s.store.WithTx(ctx, func(r repository.Repositories) error {
		chat, err := r.Chats.FindByChannelAndOwner(ctx, channelID, userID)
		if err != nil {
			return err
		}
		if chat == nil {
			return apperr.ErrChatNotFound
		}
		if chat.OwnerID != userID {
			return apperr.ErrUnauthorizedDelete
		}

		ch, err := r.Channels.FindByChatID(ctx, chat.ID)
		if err != nil {
			return err
		}
		if ch == nil {
			return apperr.ErrChannelNotFound
		}
		channelType = ch.Type()

		if err := r.ChatMessages.DeleteByChat(ctx, chat.ID); err != nil {
			return err
		}

		switch c := ch.(type) {
		case *models.PrivateChannel:
			if deleted, err = leavePrivate(ctx, r, c, chat); err != nil {
				return err
			}
			notice = &events.Event{
				Type:      events.TypeLeave,
				ChannelID: c.ID,
				SenderID:  userID,
				SentAt:    time.Now().UTC(),
			}
			return nil
		case *models.GroupChannel:
			deleted, notice, err = leaveGroup(ctx, r, c, chat)
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	observ.ChatLeaves.WithLabelValues(string(channelType)).Inc()
	if deleted {
		observ.ChannelsDeleted.WithLabelValues(string(channelType)).Inc()
	}
	s.logger.Info("user left channel",
		zap.String("channel_id", channelID.String()),
		zap.String("user_id", userID.String()),
		zap.String("channel_type", string(channelType)),
		zap.Bool("channel_deleted", deleted),
	)
	if notice != nil {
		s.publish(ctx, *notice)
	}
	return nil
}

// leavePrivate deletes the caller's chat, and the whole channel when the other
// side has no chat or no history left.
func leavePrivate(ctx context.Context, r repository.Repositories, ch *models.PrivateChannel, chat *models.Chat) (bool, error) {
	other, err := r.Chats.FindOtherInPrivateChannel(ctx, ch.ID, chat.ID)
	if err != nil {
		return false, err
	}
	otherHasHistory := false
	if other != nil {
		if otherHasHistory, err = r.ChatMessages.ExistsByChat(ctx, other.ID); err != nil {
			return false, err
		}
	}

	if err := r.Chats.Delete(ctx, chat.ID); err != nil {
		return false, err
	}
	if otherHasHistory {
		return false, nil
	}

	if other != nil {
		if err := r.Chats.Delete(ctx, other.ID); err != nil {
			return false, err
		}
	}
	if err := r.Messages.DeleteByChannel(ctx, ch.ID); err != nil {
		return false, err
	}
	if err := r.Channels.Delete(ctx, ch.ID); err != nil {
		return false, err
	}
	return true, nil
}

// leaveGroup deletes the caller's chat and releases their seat. The last member
// out deletes the channel and its history; otherwise the remaining members get a
// durable EXIT message.
func leaveGroup(ctx context.Context, r repository.Repositories, ch *models.GroupChannel, chat *models.Chat) (bool, *events.Event, error) {
	if err := r.Chats.Delete(ctx, chat.ID); err != nil {
		return false, nil, err
	}
	remaining, err := r.Channels.DecrementParticipants(ctx, ch.ID)
	if err != nil {
		return false, nil, err
	}

	if remaining == 0 {
		if err := r.Messages.DeleteByChannel(ctx, ch.ID); err != nil {
			return false, nil, err
		}
		if err := r.Channels.Delete(ctx, ch.ID); err != nil {
			return false, nil, err
		}
		ev := events.Event{
			Type:      events.TypeExit,
			ChannelID: ch.ID,
			SenderID:  chat.OwnerID,
			Content:   ExitContent,
			SentAt:    time.Now().UTC(),
		}
		return true, &ev, nil
	}

	msg, err := recordMessage(ctx, r, ch.ID, chat.OwnerID, models.MessageTypeExit, ExitContent, uuid.Nil)
	if err != nil {
		return false, nil, err
	}
	ev := events.FromMessage(msg)
	return false, &ev, nil
}
