package api

import (
	"net/http"
	"strconv"

	"github.com/asjjun/naejango/internal/chat"
	"github.com/asjjun/naejango/internal/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type MessageHandler struct {
	svc    *chat.Service
	logger *zap.Logger
}

func NewMessageHandler(svc *chat.Service, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{svc: svc, logger: logger}
}

type createMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// Create handles POST /v1/channels/:id/messages
func (h *MessageHandler) Create(c *gin.Context) {
	channelID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	msg, err := h.svc.SendMessage(c.Request.Context(), middleware.GetUserID(c), channelID, req.Content)
	if err != nil {
		writeError(c, h.logger, err, "send message")
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// List handles GET /v1/channels/:id/messages?before=123&limit=50
//
// before is a message id cursor: only older messages are returned. Omitted, the
// newest page is returned. limit defaults to 50 and is capped at 100.
func (h *MessageHandler) List(c *gin.Context) {
	channelID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var before int64
	if b := c.Query("before"); b != "" {
		var err error
		before, err = strconv.ParseInt(b, 10, 64)
		if err != nil {
			badRequest(c, "invalid 'before' parameter")
			return
		}
	}
	limit, ok := queryInt(c, "limit", chat.DefaultMessageLimit)
	if !ok {
		return
	}

	messages, err := h.svc.ListMessages(c.Request.Context(), middleware.GetUserID(c), channelID, before, limit)
	if err != nil {
		writeError(c, h.logger, err, "list messages")
		return
	}
	c.JSON(http.StatusOK, messages)
}
