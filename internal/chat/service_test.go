package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/asjjun/naejango/internal/apperr"
	"github.com/asjjun/naejango/internal/events"
	"github.com/asjjun/naejango/internal/models"
	"github.com/asjjun/naejango/internal/repository"
	"github.com/asjjun/naejango/internal/repository/sqlite"
	"github.com/asjjun/naejango/internal/ws"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, ev events.Event) error {
	return m.Called(ctx, ev).Error(0)
}

func (m *mockPublisher) published() []events.Event {
	var out []events.Event
	for _, c := range m.Calls {
		out = append(out, c.Arguments.Get(1).(events.Event))
	}
	return out
}

type fixture struct {
	svc   *Service
	store *sqlite.Store
	repos repository.Repositories
	pub   *mockPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil)

	return &fixture{
		svc:   NewService(store, pub, 10, zap.NewNop()),
		store: store,
		repos: store.Repos(),
		pub:   pub,
	}
}

func (f *fixture) user(t *testing.T, name string) uuid.UUID {
	t.Helper()
	u, err := f.repos.Users.Create(context.Background(), name+"@naejango.test", name, "hash")
	require.NoError(t, err)
	return u.ID
}

func (f *fixture) group(t *testing.T, owner uuid.UUID, itemID int64, limit int) uuid.UUID {
	t.Helper()
	res, err := f.svc.CreateGroupChannel(context.Background(), owner, GroupChannelInput{
		ItemID:       itemID,
		DefaultTitle: "camping gear",
		ChannelLimit: limit,
	})
	require.NoError(t, err)
	require.True(t, res.Created)
	return res.ChannelID
}

func (f *fixture) groupChannel(t *testing.T, channelID uuid.UUID) *models.GroupChannel {
	t.Helper()
	ch, err := f.repos.Channels.FindByID(context.Background(), channelID)
	require.NoError(t, err)
	if ch == nil {
		return nil
	}
	return ch.(*models.GroupChannel)
}

func (f *fixture) history(t *testing.T, channelID uuid.UUID) []models.Message {
	t.Helper()
	msgs, err := f.repos.Messages.ListByChannel(context.Background(), channelID, 0, 100)
	require.NoError(t, err)
	return msgs
}

func TestJoinGroupChannel(t *testing.T) {
	ctx := context.Background()

	t.Run("should fill the last seat and then refuse the next joiner", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		a, b, c := f.user(t, "a"), f.user(t, "b"), f.user(t, "c")
		channelID := f.group(t, a, 1, 2)

		res, err := f.svc.JoinGroupChannel(ctx, channelID, b)
		req.NoError(err)
		req.True(res.Created)
		chatB, err := f.repos.Chats.FindByChannelAndOwner(ctx, channelID, b)
		req.NoError(err)
		req.Equal(chatB.ID, res.ChatID)
		req.Equal(2, f.groupChannel(t, channelID).ParticipantsCount)

		_, err = f.svc.JoinGroupChannel(ctx, channelID, c)
		req.ErrorIs(err, apperr.ErrChannelIsFull)

		chatC, err := f.repos.Chats.FindByChannelAndOwner(ctx, channelID, c)
		req.NoError(err)
		req.Nil(chatC)
		req.Equal(2, f.groupChannel(t, channelID).ParticipantsCount)
	})

	t.Run("should be idempotent for an existing member", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		a, b := f.user(t, "a"), f.user(t, "b")
		channelID := f.group(t, a, 1, 5)

		first, err := f.svc.JoinGroupChannel(ctx, channelID, b)
		req.NoError(err)
		req.True(first.Created)

		second, err := f.svc.JoinGroupChannel(ctx, channelID, b)
		req.NoError(err)
		req.False(second.Created)
		req.Equal(first.ChatID, second.ChatID)
		req.Equal(2, f.groupChannel(t, channelID).ParticipantsCount)
		req.Len(f.history(t, channelID), 2)
	})

	t.Run("should refuse an existing member when the channel is full", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		a, b := f.user(t, "a"), f.user(t, "b")
		channelID := f.group(t, a, 1, 2)
		_, err := f.svc.JoinGroupChannel(ctx, channelID, b)
		req.NoError(err)

		for _, member := range []uuid.UUID{a, b} {
			res, err := f.svc.JoinGroupChannel(ctx, channelID, member)
			req.ErrorIs(err, apperr.ErrChannelIsFull)
			req.Zero(res)
		}
		req.Equal(2, f.groupChannel(t, channelID).ParticipantsCount)

		chatB, err := f.repos.Chats.FindByChannelAndOwner(ctx, channelID, b)
		req.NoError(err)
		req.NotNil(chatB)
	})

	t.Run("should refuse an existing member when the channel is closed", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		a, b := f.user(t, "a"), f.user(t, "b")
		channelID := f.group(t, a, 1, 5)
		_, err := f.svc.JoinGroupChannel(ctx, channelID, b)
		req.NoError(err)
		req.NoError(f.svc.CloseGroupChannel(ctx, a, channelID))

		_, err = f.svc.JoinGroupChannel(ctx, channelID, b)
		req.ErrorIs(err, apperr.ErrChannelIsClosed)
		_, err = f.svc.JoinGroupChannel(ctx, channelID, a)
		req.ErrorIs(err, apperr.ErrChannelIsClosed)

		chatID, err := f.svc.MyChatID(ctx, channelID, b)
		req.NoError(err)
		req.NotEqual(uuid.Nil, chatID)
	})

	t.Run("should record a durable ENTER and publish it after commit", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		a, b := f.user(t, "a"), f.user(t, "b")
		channelID := f.group(t, a, 1, 5)

		_, err := f.svc.JoinGroupChannel(ctx, channelID, b)
		req.NoError(err)

		latest := f.history(t, channelID)[0]
		req.Equal(models.MessageTypeEnter, latest.MessageType)
		req.Equal(b, latest.SenderID)
		req.Equal(EnterContent, latest.Content)

		published := f.pub.published()
		last := published[len(published)-1]
		req.Equal(events.TypeEnter, last.Type)
		req.Equal(b, last.SenderID)
		req.Equal(latest.ID, last.MessageID)
	})

	t.Run("should refuse a closed channel", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		a, b := f.user(t, "a"), f.user(t, "b")
		channelID := f.group(t, a, 1, 5)
		req.NoError(f.svc.CloseGroupChannel(ctx, a, channelID))

		_, err := f.svc.JoinGroupChannel(ctx, channelID, b)
		req.ErrorIs(err, apperr.ErrChannelIsClosed)
	})

	t.Run("should report an unknown or private channel as not found", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		a, b := f.user(t, "a"), f.user(t, "b")

		_, err := f.svc.JoinGroupChannel(ctx, uuid.New(), a)
		req.ErrorIs(err, apperr.ErrChannelNotFound)

		p, err := f.svc.StartPrivateChannel(ctx, a, b)
		req.NoError(err)
		_, err = f.svc.JoinGroupChannel(ctx, p.ChannelID, f.user(t, "c"))
		req.ErrorIs(err, apperr.ErrChannelNotFound)
	})

	t.Run("should succeed even when publishing fails", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		a, b := f.user(t, "a"), f.user(t, "b")
		channelID := f.group(t, a, 1, 5)

		f.pub.ExpectedCalls = nil
		f.pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("redis down"))

		res, err := f.svc.JoinGroupChannel(ctx, channelID, b)
		req.NoError(err)
		req.True(res.Created)
	})

	t.Run("should never exceed the limit under concurrent joins", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		owner := f.user(t, "owner")
		channelID := f.group(t, owner, 1, 4)

		joiners := make([]uuid.UUID, 8)
		for i := range joiners {
			joiners[i] = f.user(t, fmt.Sprintf("joiner%d", i))
		}

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
			full    int
		)
		for _, id := range joiners {
			wg.Add(1)
			go func(id uuid.UUID) {
				defer wg.Done()
				res, err := f.svc.JoinGroupChannel(ctx, channelID, id)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil && res.Created:
					created++
				case errors.Is(err, apperr.ErrChannelIsFull):
					full++
				}
			}(id)
		}
		wg.Wait()

		req.Equal(3, created)
		req.Equal(5, full)
		req.Equal(4, f.groupChannel(t, channelID).ParticipantsCount)
	})
}

func TestDeleteChat_Group(t *testing.T) {
	ctx := context.Background()

	t.Run("should release one seat and announce the exit", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		a, b := f.user(t, "a"), f.user(t, "b")
		channelID := f.group(t, a, 1, 5)
		_, err := f.svc.JoinGroupChannel(ctx, channelID, b)
		req.NoError(err)

		req.NoError(f.svc.DeleteChat(ctx, channelID, b))

		req.Equal(1, f.groupChannel(t, channelID).ParticipantsCount)
		_, err = f.svc.MyChatID(ctx, channelID, b)
		req.ErrorIs(err, apperr.ErrChatNotFound)

		latest := f.history(t, channelID)[0]
		req.Equal(models.MessageTypeExit, latest.MessageType)
		req.Equal(ExitContent, latest.Content)

		published := f.pub.published()
		req.Equal(events.TypeExit, published[len(published)-1].Type)
		req.Equal(b, published[len(published)-1].SenderID)

		_, err = f.svc.SendMessage(ctx, b, channelID, "still here?")
		req.ErrorIs(err, apperr.ErrChatNotFound)
	})

	t.Run("should delete the channel and its history when the last member leaves", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		a, b := f.user(t, "a"), f.user(t, "b")
		channelID := f.group(t, a, 1, 5)
		_, err := f.svc.JoinGroupChannel(ctx, channelID, b)
		req.NoError(err)
		_, err = f.svc.SendMessage(ctx, a, channelID, "hello")
		req.NoError(err)

		req.NoError(f.svc.DeleteChat(ctx, channelID, a))
		req.NoError(f.svc.DeleteChat(ctx, channelID, b))

		req.Nil(f.groupChannel(t, channelID))
		req.Empty(f.history(t, channelID))
	})

	t.Run("should reject a user without a chat in the channel", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		a := f.user(t, "a")
		channelID := f.group(t, a, 1, 5)

		err := f.svc.DeleteChat(ctx, channelID, f.user(t, "stranger"))
		req.ErrorIs(err, apperr.ErrChatNotFound)
		req.Equal(1, f.groupChannel(t, channelID).ParticipantsCount)
	})
}

func TestDeleteChat_Private(t *testing.T) {
	ctx := context.Background()

	channelExists := func(t *testing.T, f *fixture, id uuid.UUID) bool {
		ch, err := f.repos.Channels.FindByID(ctx, id)
		require.NoError(t, err)
		return ch != nil
	}

	t.Run("should delete the channel when neither side has history", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		a, b := f.user(t, "a"), f.user(t, "b")
		p, err := f.svc.StartPrivateChannel(ctx, a, b)
		req.NoError(err)

		req.NoError(f.svc.DeleteChat(ctx, p.ChannelID, b))

		req.False(channelExists(t, f, p.ChannelID))
		chatA, err := f.repos.Chats.FindByChannelAndOwner(ctx, p.ChannelID, a)
		req.NoError(err)
		req.Nil(chatA)
	})

	t.Run("should keep the channel while the other side has history", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		a, b := f.user(t, "a"), f.user(t, "b")
		p, err := f.svc.StartPrivateChannel(ctx, a, b)
		req.NoError(err)
		_, err = f.svc.SendMessage(ctx, a, p.ChannelID, "is the bike still available?")
		req.NoError(err)

		req.NoError(f.svc.DeleteChat(ctx, p.ChannelID, b))

		req.True(channelExists(t, f, p.ChannelID))
		chatA, err := f.repos.Chats.FindByChannelAndOwner(ctx, p.ChannelID, a)
		req.NoError(err)
		req.NotNil(chatA)
		req.Len(f.history(t, p.ChannelID), 1)

		_, err = f.svc.MyChatID(ctx, p.ChannelID, b)
		req.ErrorIs(err, apperr.ErrChatNotFound)
		_, err = f.svc.ListMessages(ctx, b, p.ChannelID, 0, 0)
		req.ErrorIs(err, apperr.ErrChatNotFound)
	})

	t.Run("should delete the channel when the other side already left", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		a, b := f.user(t, "a"), f.user(t, "b")
		p, err := f.svc.StartPrivateChannel(ctx, a, b)
		req.NoError(err)
		_, err = f.svc.SendMessage(ctx, a, p.ChannelID, "hello")
		req.NoError(err)

		req.NoError(f.svc.DeleteChat(ctx, p.ChannelID, b))
		req.True(channelExists(t, f, p.ChannelID))

		req.NoError(f.svc.DeleteChat(ctx, p.ChannelID, a))
		req.False(channelExists(t, f, p.ChannelID))
		req.Empty(f.history(t, p.ChannelID))
	})

	t.Run("should publish a leave without writing an exit message", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		a, b := f.user(t, "a"), f.user(t, "b")
		p, err := f.svc.StartPrivateChannel(ctx, a, b)
		req.NoError(err)
		_, err = f.svc.SendMessage(ctx, a, p.ChannelID, "hello")
		req.NoError(err)

		req.NoError(f.svc.DeleteChat(ctx, p.ChannelID, b))

		published := f.pub.published()
		last := published[len(published)-1]
		req.Equal(events.TypeLeave, last.Type)
		req.Equal(p.ChannelID, last.ChannelID)
		req.Equal(b, last.SenderID)
		req.Empty(last.Content)

		history := f.history(t, p.ChannelID)
		req.Len(history, 1)
		req.Equal(models.MessageTypeChat, history[0].MessageType)
	})
}

func TestDeleteChat_PrivateStopsLiveDelivery(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)

	store, err := sqlite.Open(":memory:")
	req.NoError(err)
	t.Cleanup(func() { _ = store.Close() })
	repos := store.Repos()

	hub := ws.NewHub(repos.Chats, zap.NewNop())
	svc := NewService(store, hub, 10, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(r.URL.Query().Get("user"))
		if err != nil {
			http.Error(w, "bad user", http.StatusBadRequest)
			return
		}
		hub.ServeWS(w, r, userID)
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	newUser := func(name string) uuid.UUID {
		u, err := repos.Users.Create(ctx, name+"@naejango.test", name, "hash")
		req.NoError(err)
		return u.ID
	}
	a, b := newUser("a"), newUser("b")
	p, err := svc.StartPrivateChannel(ctx, a, b)
	req.NoError(err)
	_, err = svc.SendMessage(ctx, a, p.ChannelID, "is the desk still available?")
	req.NoError(err)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"?user="+b.String(), nil)
	req.NoError(err)
	t.Cleanup(func() { conn.Close() })

	req.NoError(conn.WriteJSON(map[string]string{"type": ws.FrameSubscribe, "channel_id": p.ChannelID.String()}))
	var frame map[string]any
	req.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	req.NoError(conn.ReadJSON(&frame))
	req.Equal(ws.FrameSubscribed, frame["type"])
	req.Equal(1, hub.Subscribers(p.ChannelID))

	req.NoError(svc.DeleteChat(ctx, p.ChannelID, b))
	req.Zero(hub.Subscribers(p.ChannelID))

	_, err = svc.SendMessage(ctx, a, p.ChannelID, "hello? still there?")
	req.NoError(err)

	req.NoError(conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond)))
	_, raw, err := conn.ReadMessage()
	req.Error(err, "received %s after leaving", raw)
}

func TestChangeChatTitle(t *testing.T) {
	ctx := context.Background()

	t.Run("should rename the owner's chat", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		a := f.user(t, "a")
		channelID := f.group(t, a, 1, 5)
		chatID, err := f.svc.MyChatID(ctx, channelID, a)
		req.NoError(err)

		req.NoError(f.svc.ChangeChatTitle(ctx, a, chatID, "  tent share  "))

		chat, err := f.repos.Chats.FindByID(ctx, chatID)
		req.NoError(err)
		req.Equal("tent share", chat.Title)
	})

	t.Run("should refuse a non-owner and keep the title", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		a, b := f.user(t, "a"), f.user(t, "b")
		channelID := f.group(t, a, 1, 5)
		chatID, err := f.svc.MyChatID(ctx, channelID, a)
		req.NoError(err)

		err = f.svc.ChangeChatTitle(ctx, b, chatID, "mine now")
		req.ErrorIs(err, apperr.ErrUnauthorizedModify)

		err = f.svc.ChangeChatTitle(ctx, b, chatID, "")
		req.ErrorIs(err, apperr.ErrUnauthorizedModify)

		chat, err := f.repos.Chats.FindByID(ctx, chatID)
		req.NoError(err)
		req.Equal("camping gear", chat.Title)
	})

	t.Run("should validate the title", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		a := f.user(t, "a")
		channelID := f.group(t, a, 1, 5)
		chatID, err := f.svc.MyChatID(ctx, channelID, a)
		req.NoError(err)

		req.ErrorIs(f.svc.ChangeChatTitle(ctx, a, chatID, "   "), apperr.ErrInvalidInput)
		req.ErrorIs(f.svc.ChangeChatTitle(ctx, a, chatID, strings.Repeat("가", 51)), apperr.ErrInvalidInput)
		req.NoError(f.svc.ChangeChatTitle(ctx, a, chatID, strings.Repeat("가", 50)))
	})

	t.Run("should report a missing chat", func(t *testing.T) {
		f := newFixture(t)
		err := f.svc.ChangeChatTitle(ctx, f.user(t, "a"), uuid.New(), "title")
		require.ErrorIs(t, err, apperr.ErrChatNotFound)
	})
}

func TestMyChatList(t *testing.T) {
	ctx := context.Background()

	t.Run("should validate paging", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		a := f.user(t, "a")

		_, err := f.svc.MyChatList(ctx, a, -1, 10)
		req.ErrorIs(err, apperr.ErrInvalidInput)
		_, err = f.svc.MyChatList(ctx, a, 0, 0)
		req.ErrorIs(err, apperr.ErrInvalidInput)
		_, err = f.svc.MyChatList(ctx, a, 0, 101)
		req.ErrorIs(err, apperr.ErrInvalidInput)
	})

	t.Run("should order chats by latest activity", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		a, b := f.user(t, "a"), f.user(t, "b")
		first := f.group(t, a, 1, 5)
		second := f.group(t, a, 2, 5)
		p, err := f.svc.StartPrivateChannel(ctx, a, b)
		req.NoError(err)

		_, err = f.svc.SendMessage(ctx, a, first, "bump")
		req.NoError(err)

		page, err := f.svc.MyChatList(ctx, a, 0, 10)
		req.NoError(err)
		req.Equal(int64(3), page.Total)
		req.Equal(first, page.Items[0].ChannelID)
		req.Equal("bump", page.Items[0].LastMessage)
		req.ElementsMatch(
			[]uuid.UUID{second, p.ChannelID},
			[]uuid.UUID{page.Items[1].ChannelID, page.Items[2].ChannelID},
		)
	})
}

func TestCreateGroupChannel(t *testing.T) {
	ctx := context.Background()

	t.Run("should create one channel per item with the owner seated", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		a, b := f.user(t, "a"), f.user(t, "b")

		res, err := f.svc.CreateGroupChannel(ctx, a, GroupChannelInput{ItemID: 9, DefaultTitle: "bike"})
		req.NoError(err)
		req.True(res.Created)

		g := f.groupChannel(t, res.ChannelID)
		req.Equal(1, g.ParticipantsCount)
		req.Equal(10, g.ChannelLimit)
		req.Equal(a, g.OwnerID)
		req.Equal(models.MessageTypeEnter, f.history(t, res.ChannelID)[0].MessageType)

		again, err := f.svc.CreateGroupChannel(ctx, b, GroupChannelInput{ItemID: 9, DefaultTitle: "bike"})
		req.NoError(err)
		req.False(again.Created)
		req.Equal(res.ChannelID, again.ChannelID)
		req.Equal(uuid.Nil, again.ChatID)
	})

	t.Run("should validate the input", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		a := f.user(t, "a")

		_, err := f.svc.CreateGroupChannel(ctx, a, GroupChannelInput{ItemID: 1, DefaultTitle: "x", ChannelLimit: 1})
		req.ErrorIs(err, apperr.ErrInvalidInput)
		_, err = f.svc.CreateGroupChannel(ctx, a, GroupChannelInput{ItemID: 0, DefaultTitle: "x"})
		req.ErrorIs(err, apperr.ErrInvalidInput)
		_, err = f.svc.CreateGroupChannel(ctx, a, GroupChannelInput{ItemID: 1, DefaultTitle: " "})
		req.ErrorIs(err, apperr.ErrInvalidInput)
	})
}

func TestStartPrivateChannel(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	f := newFixture(t)
	a, b := f.user(t, "alice"), f.user(t, "bob")

	_, err := f.svc.StartPrivateChannel(ctx, a, a)
	req.ErrorIs(err, apperr.ErrInvalidInput)
	_, err = f.svc.StartPrivateChannel(ctx, a, uuid.New())
	req.ErrorIs(err, apperr.ErrUserNotFound)

	res, err := f.svc.StartPrivateChannel(ctx, a, b)
	req.NoError(err)
	req.True(res.Created)

	mine, err := f.repos.Chats.FindByID(ctx, res.ChatID)
	req.NoError(err)
	req.Equal("bob", mine.Title)
	theirs, err := f.repos.Chats.FindByChannelAndOwner(ctx, res.ChannelID, b)
	req.NoError(err)
	req.Equal("alice", theirs.Title)

	again, err := f.svc.StartPrivateChannel(ctx, b, a)
	req.NoError(err)
	req.False(again.Created)
	req.Equal(res.ChannelID, again.ChannelID)
	req.Equal(theirs.ID, again.ChatID)
}

func TestCloseGroupChannel(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	f := newFixture(t)
	a, b := f.user(t, "a"), f.user(t, "b")
	channelID := f.group(t, a, 1, 5)

	req.ErrorIs(f.svc.CloseGroupChannel(ctx, b, channelID), apperr.ErrUnauthorizedModify)
	req.ErrorIs(f.svc.CloseGroupChannel(ctx, a, uuid.New()), apperr.ErrChannelNotFound)

	req.NoError(f.svc.CloseGroupChannel(ctx, a, channelID))
	req.NoError(f.svc.CloseGroupChannel(ctx, a, channelID))
	req.True(f.groupChannel(t, channelID).IsClosed)
}

func TestMessaging(t *testing.T) {
	ctx := context.Background()

	t.Run("should deliver to every member and mark the sender's copy read", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		a, b := f.user(t, "a"), f.user(t, "b")
		channelID := f.group(t, a, 1, 5)
		_, err := f.svc.JoinGroupChannel(ctx, channelID, b)
		req.NoError(err)

		msg, err := f.svc.SendMessage(ctx, a, channelID, "meet at 6?")
		req.NoError(err)
		req.Equal(models.MessageTypeChat, msg.MessageType)

		published := f.pub.published()
		req.Equal(events.TypeMessage, published[len(published)-1].Type)
		req.Equal(msg.ID, published[len(published)-1].MessageID)

		// a's copy of b's ENTER is unread; a's own message is not.
		pageA, err := f.svc.MyChatList(ctx, a, 0, 10)
		req.NoError(err)
		req.Equal(int64(1), pageA.Items[0].UnreadCount)

		pageB, err := f.svc.MyChatList(ctx, b, 0, 10)
		req.NoError(err)
		req.Equal("meet at 6?", pageB.Items[0].LastMessage)
		req.Equal(int64(1), pageB.Items[0].UnreadCount)

		msgs, err := f.svc.ListMessages(ctx, b, channelID, 0, 0)
		req.NoError(err)
		req.Equal(msg.ID, msgs[0].ID)

		pageB, err = f.svc.MyChatList(ctx, b, 0, 10)
		req.NoError(err)
		req.Zero(pageB.Items[0].UnreadCount)
	})

	t.Run("should validate content and membership", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		a := f.user(t, "a")
		channelID := f.group(t, a, 1, 5)

		_, err := f.svc.SendMessage(ctx, a, channelID, "  ")
		req.ErrorIs(err, apperr.ErrInvalidInput)
		_, err = f.svc.SendMessage(ctx, a, channelID, strings.Repeat("a", 1001))
		req.ErrorIs(err, apperr.ErrInvalidInput)
		_, err = f.svc.SendMessage(ctx, f.user(t, "stranger"), channelID, "hi")
		req.ErrorIs(err, apperr.ErrChatNotFound)

		_, err = f.svc.ListMessages(ctx, a, channelID, -1, 10)
		req.ErrorIs(err, apperr.ErrInvalidInput)
	})
}

// staleStore serves transactions whose first channel lookup returns a snapshot
// taken earlier, and whose chat lookups can be told to miss. It reproduces what a
// transaction sees when another request commits between its read and its write.
type staleStore struct {
	*sqlite.Store
	snapshot models.Channel
	hideChat bool
}

func (s *staleStore) WithTx(ctx context.Context, fn func(repository.Repositories) error) error {
	return s.Store.WithTx(ctx, func(r repository.Repositories) error {
		if s.snapshot != nil {
			r.Channels = &staleChannels{ChannelRepository: r.Channels, snapshot: s.snapshot}
		}
		if s.hideChat {
			r.Chats = missingChats{ChatRepository: r.Chats}
		}
		return fn(r)
	})
}

type staleChannels struct {
	repository.ChannelRepository
	snapshot models.Channel
	served   bool
}

func (c *staleChannels) FindByID(ctx context.Context, channelID uuid.UUID) (models.Channel, error) {
	if !c.served && c.snapshot.Base().ID == channelID {
		c.served = true
		return c.snapshot, nil
	}
	return c.ChannelRepository.FindByID(ctx, channelID)
}

type missingChats struct {
	repository.ChatRepository
}

func (missingChats) FindByChannelAndOwner(context.Context, uuid.UUID, uuid.UUID) (*models.Chat, error) {
	return nil, nil
}

func TestJoinGroupChannel_StateChangedAfterRead(t *testing.T) {
	ctx := context.Background()

	t.Run("should report full and roll back when the last seat went first", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		a, b, c := f.user(t, "a"), f.user(t, "b"), f.user(t, "c")
		channelID := f.group(t, a, 1, 2)
		snapshot := f.groupChannel(t, channelID)

		_, err := f.svc.JoinGroupChannel(ctx, channelID, b)
		req.NoError(err)

		stale := NewService(&staleStore{Store: f.store, snapshot: snapshot}, f.pub, 10, zap.NewNop())
		_, err = stale.JoinGroupChannel(ctx, channelID, c)
		req.ErrorIs(err, apperr.ErrChannelIsFull)

		chatC, err := f.repos.Chats.FindByChannelAndOwner(ctx, channelID, c)
		req.NoError(err)
		req.Nil(chatC)
		req.Equal(2, f.groupChannel(t, channelID).ParticipantsCount)
		req.Len(f.history(t, channelID), 2)
	})

	t.Run("should report closed and roll back when the channel closed first", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		a, b := f.user(t, "a"), f.user(t, "b")
		channelID := f.group(t, a, 1, 5)
		snapshot := f.groupChannel(t, channelID)

		req.NoError(f.svc.CloseGroupChannel(ctx, a, channelID))

		stale := NewService(&staleStore{Store: f.store, snapshot: snapshot}, f.pub, 10, zap.NewNop())
		_, err := stale.JoinGroupChannel(ctx, channelID, b)
		req.ErrorIs(err, apperr.ErrChannelIsClosed)

		chatB, err := f.repos.Chats.FindByChannelAndOwner(ctx, channelID, b)
		req.NoError(err)
		req.Nil(chatB)
		req.Equal(1, f.groupChannel(t, channelID).ParticipantsCount)
	})

	t.Run("should return the existing chat when a concurrent join inserted it first", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		a, b := f.user(t, "a"), f.user(t, "b")
		channelID := f.group(t, a, 1, 5)
		first, err := f.svc.JoinGroupChannel(ctx, channelID, b)
		req.NoError(err)
		published := len(f.pub.published())

		racing := NewService(&staleStore{Store: f.store, hideChat: true}, f.pub, 10, zap.NewNop())
		res, err := racing.JoinGroupChannel(ctx, channelID, b)
		req.NoError(err)
		req.False(res.Created)
		req.Equal(first.ChatID, res.ChatID)

		req.Equal(2, f.groupChannel(t, channelID).ParticipantsCount)
		req.Len(f.pub.published(), published)
	})
}

func TestPublishFailureLoggedOnce(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)

	store, err := sqlite.Open(":memory:")
	req.NoError(err)
	t.Cleanup(func() { _ = store.Close() })

	core, logs := observer.New(zap.WarnLevel)
	broken := events.Sink{Name: "redis", Publisher: events.PublisherFunc(func(context.Context, events.Event) error {
		return errors.New("connection refused")
	})}
	svc := NewService(store, events.NewFanout(broken, events.Sink{Name: "hub", Publisher: events.Nop}), 10, zap.New(core))

	u, err := store.Repos().Users.Create(ctx, "a@naejango.test", "a", "hash")
	req.NoError(err)
	res, err := svc.CreateGroupChannel(ctx, u.ID, GroupChannelInput{ItemID: 1, DefaultTitle: "lamp", ChannelLimit: 3})
	req.NoError(err)
	req.True(res.Created)

	warnings := logs.FilterMessage("failed to publish chat event").All()
	req.Len(warnings, 1)
	req.Equal(1, logs.Len())
	req.Contains(warnings[0].ContextMap()["error"], "redis: connection refused")
}
