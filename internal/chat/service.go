// Package chat owns the channel and chat lifecycle: joining and leaving channels,
// renaming chats, tearing down empty channels, and messaging.
//
// Every mutation runs in one store transaction. Events are published only after
// that transaction commits, so a subscriber reacting to an event always finds the
// state it describes.
package chat

import (
	"context"
	"strings"

	"github.com/asjjun/naejango/internal/apperr"
	"github.com/asjjun/naejango/internal/events"
	"github.com/asjjun/naejango/internal/models"
	"github.com/asjjun/naejango/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Fixed content of the lifecycle messages.
const (
	EnterContent = "채널에 참여하였습니다."
	ExitContent  = "채널에서 퇴장 하였습니다."
)

const (
	DefaultMessageLimit = 50
	MaxMessageLimit     = 100
)

var validate = validator.New()

type Service struct {
	store        repository.Store
	publisher    events.Publisher
	defaultLimit int
	logger       *zap.Logger
	tracer       trace.Tracer
}

// NewService builds the service. defaultChannelLimit is used when a group channel
// is created without an explicit limit.
func NewService(store repository.Store, publisher events.Publisher, defaultChannelLimit int, logger *zap.Logger) *Service {
	return &Service{
		store:        store,
		publisher:    publisher,
		defaultLimit: defaultChannelLimit,
		logger:       logger,
		tracer:       otel.Tracer("github.com/asjjun/naejango/internal/chat"),
	}
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "chat."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// publish hands ev to the live transport. Failures are logged: the committed state
// is already the record.
func (s *Service) publish(ctx context.Context, ev events.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish chat event",
			zap.String("type", string(ev.Type)),
			zap.String("channel_id", ev.ChannelID.String()),
			zap.String("sender_id", ev.SenderID.String()),
			zap.Error(err),
		)
	}
}

// checkInput validates v's struct tags and reports failures as INVALID_INPUT.
func checkInput(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperr.WithDetail(apperr.CodeInvalidInput, err.Error())
	}
	fields := lo.Map(verrs, func(fe validator.FieldError, _ int) string {
		return strings.ToLower(fe.Field()) + " failed " + fe.Tag()
	})
	return apperr.WithDetail(apperr.CodeInvalidInput, strings.Join(fields, "; "))
}

// recordMessage writes a message to the channel history and delivers it to every
// chat currently in the channel. readChatID's copy starts as read.
func recordMessage(
	ctx context.Context,
	r repository.Repositories,
	channelID, senderID uuid.UUID,
	messageType models.MessageType,
	content string,
	readChatID uuid.UUID,
) (*models.Message, error) {
	msg, err := r.Messages.Create(ctx, channelID, senderID, messageType, content)
	if err != nil {
		return nil, err
	}
	chats, err := r.Chats.ListByChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	ids := lo.Map(chats, func(c models.Chat, _ int) uuid.UUID { return c.ID })
	if err := r.ChatMessages.CreateForChats(ctx, msg.ID, ids, readChatID); err != nil {
		return nil, err
	}
	if err := r.Channels.TouchLastMessage(ctx, channelID, msg.CreatedAt); err != nil {
		return nil, err
	}
	return msg, nil
}
