package api

import (
	"net/http"

	"github.com/asjjun/naejango/internal/chat"
	"github.com/asjjun/naejango/internal/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MembershipHandler handles the caller's own membership of a channel: joining,
// finding their chat, and leaving.
type MembershipHandler struct {
	svc    *chat.Service
	logger *zap.Logger
}

func NewMembershipHandler(svc *chat.Service, logger *zap.Logger) *MembershipHandler {
	return &MembershipHandler{svc: svc, logger: logger}
}

// Join handles POST /v1/channels/:id/join
func (h *MembershipHandler) Join(c *gin.Context) {
	channelID, ok := pathID(c, "id")
	if !ok {
		return
	}

	res, err := h.svc.JoinGroupChannel(c.Request.Context(), channelID, middleware.GetUserID(c))
	if err != nil {
		writeError(c, h.logger, err, "join channel")
		return
	}
	c.JSON(channelStatus(res.Created), res)
}

// MyChatID handles GET /v1/channels/:id/chat-id
func (h *MembershipHandler) MyChatID(c *gin.Context) {
	channelID, ok := pathID(c, "id")
	if !ok {
		return
	}

	chatID, err := h.svc.MyChatID(c.Request.Context(), channelID, middleware.GetUserID(c))
	if err != nil {
		writeError(c, h.logger, err, "get chat id")
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": chatID})
}

// Leave handles DELETE /v1/channels/:id/chat
func (h *MembershipHandler) Leave(c *gin.Context) {
	channelID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.DeleteChat(c.Request.Context(), channelID, middleware.GetUserID(c)); err != nil {
		writeError(c, h.logger, err, "leave channel")
		return
	}
	c.Status(http.StatusNoContent)
}
