package api

import (
	"context"
	"net/http"
	"time"

	"github.com/asjjun/naejango/internal/chat"
	"github.com/asjjun/naejango/internal/middleware"
	"github.com/asjjun/naejango/internal/repository"
	"github.com/asjjun/naejango/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps is everything the HTTP surface needs. Hub and RateLimit are optional.
type Deps struct {
	Store     repository.Store
	Chat      *chat.Service
	Hub       *ws.Hub
	JWTSecret string
	TokenTTL  time.Duration
	RateLimit middleware.AllowFunc
	Health    func(ctx context.Context) error
	Logger    *zap.Logger
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Metrics())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public: load balancers and signup/login need no token.
	r.GET("/v1/health", func(c *gin.Context) {
		if d.Health != nil {
			if err := d.Health(c.Request.Context()); err != nil {
				d.Logger.Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	repos := d.Store.Repos()
	authH := NewAuthHandler(repos.Users, d.JWTSecret, d.TokenTTL, d.Logger)
	r.POST("/v1/auth/signup", authH.Signup)
	r.POST("/v1/auth/login", authH.Login)

	v1 := r.Group("/v1")
	v1.Use(middleware.AuthMiddleware(d.JWTSecret))

	userH := NewUserHandler(repos.Users, d.Logger)
	v1.GET("/users/me", userH.GetMe)

	channelH := NewChannelHandler(d.Chat, d.Logger)
	v1.POST("/channels/group", channelH.CreateGroup)
	v1.POST("/channels/private", channelH.StartPrivate)
	v1.POST("/channels/:id/close", channelH.Close)

	memberH := NewMembershipHandler(d.Chat, d.Logger)
	v1.POST("/channels/:id/join", memberH.Join)
	v1.GET("/channels/:id/chat-id", memberH.MyChatID)
	v1.DELETE("/channels/:id/chat", memberH.Leave)

	chatH := NewChatHandler(d.Chat, d.Logger)
	v1.GET("/chats", chatH.List)
	v1.PATCH("/chats/:id/title", chatH.ChangeTitle)

	msgH := NewMessageHandler(d.Chat, d.Logger)
	send := []gin.HandlerFunc{msgH.Create}
	if d.RateLimit != nil {
		send = append([]gin.HandlerFunc{middleware.RateLimit(d.RateLimit, d.Logger)}, send...)
	}
	v1.POST("/channels/:id/messages", send...)
	v1.GET("/channels/:id/messages", msgH.List)

	if d.Hub != nil {
		v1.GET("/ws", NewWSHandler(d.Hub).Serve)
	}

	return r
}
