package chat

import (
	"context"
	"strings"

	"github.com/asjjun/naejango/internal/apperr"
	"github.com/asjjun/naejango/internal/events"
	"github.com/asjjun/naejango/internal/models"
	"github.com/asjjun/naejango/internal/observ"
	"github.com/asjjun/naejango/internal/repository"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// SendMessage appends a chat message to channelID's history, delivers it to every
// member's chat, and then publishes it.
func (s *Service) SendMessage(ctx context.Context, userID, channelID uuid.UUID, content string) (msg *models.Message, err error) {
	ctx, span := s.startSpan(ctx, "SendMessage", attribute.String("channel_id", channelID.String()))
	defer func() { endSpan(span, err) }()

	in := struct {
		Content string `validate:"required,max=1000"`
	}{content}
	if strings.TrimSpace(content) == "" {
		in.Content = ""
	}
	if err := checkInput(in); err != nil {
		return nil, err
	}

	err = s.store.WithTx(ctx, func(r repository.Repositories) error {
		chat, err := r.Chats.FindByChannelAndOwner(ctx, channelID, userID)
		if err != nil {
			return err
		}
		if chat == nil {
			return apperr.ErrChatNotFound
		}
		msg, err = recordMessage(ctx, r, channelID, userID, models.MessageTypeChat, content, chat.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	observ.MessagesSent.Inc()
	s.publish(ctx, events.FromMessage(msg))
	return msg, nil
}

// ListMessages returns channelID's history newest first, older than the message id
// before (0 for the latest). Reading marks the caller's copies read.
func (s *Service) ListMessages(ctx context.Context, userID, channelID uuid.UUID, before int64, limit int) ([]models.Message, error) {
	if limit == 0 {
		limit = DefaultMessageLimit
	}
	if before < 0 || limit < 0 {
		return nil, apperr.ErrInvalidInput
	}
	limit = min(limit, MaxMessageLimit)

	repos := s.store.Repos()
	chat, err := repos.Chats.FindByChannelAndOwner(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, apperr.ErrChatNotFound
	}

	msgs, err := repos.Messages.ListByChannel(ctx, channelID, before, limit)
	if err != nil {
		return nil, err
	}
	if err := repos.ChatMessages.MarkRead(ctx, chat.ID); err != nil {
		return nil, err
	}
	return msgs, nil
}
