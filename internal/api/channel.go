package api

import (
	"net/http"

	"github.com/asjjun/naejango/internal/chat"
	"github.com/asjjun/naejango/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChannelHandler creates and closes channels.
type ChannelHandler struct {
	svc    *chat.Service
	logger *zap.Logger
}

func NewChannelHandler(svc *chat.Service, logger *zap.Logger) *ChannelHandler {
	return &ChannelHandler{svc: svc, logger: logger}
}

type createGroupRequest struct {
	ItemID       int64  `json:"item_id" binding:"required"`
	DefaultTitle string `json:"default_title" binding:"required"`
	ChannelLimit int    `json:"channel_limit"`
}

type startPrivateRequest struct {
	OtherUserID uuid.UUID `json:"other_user_id" binding:"required"`
}

// channelStatus is 201 when the call created the channel and 200 when it returned
// an existing one.
func channelStatus(created bool) int {
	if created {
		return http.StatusCreated
	}
	return http.StatusOK
}

// CreateGroup handles POST /v1/channels/group
func (h *ChannelHandler) CreateGroup(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.svc.CreateGroupChannel(c.Request.Context(), middleware.GetUserID(c), chat.GroupChannelInput{
		ItemID:       req.ItemID,
		DefaultTitle: req.DefaultTitle,
		ChannelLimit: req.ChannelLimit,
	})
	if err != nil {
		writeError(c, h.logger, err, "create group channel")
		return
	}
	c.JSON(channelStatus(res.Created), res)
}

// StartPrivate handles POST /v1/channels/private
func (h *ChannelHandler) StartPrivate(c *gin.Context) {
	var req startPrivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.svc.StartPrivateChannel(c.Request.Context(), middleware.GetUserID(c), req.OtherUserID)
	if err != nil {
		writeError(c, h.logger, err, "start private channel")
		return
	}
	c.JSON(channelStatus(res.Created), res)
}

// Close handles POST /v1/channels/:id/close
func (h *ChannelHandler) Close(c *gin.Context) {
	channelID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.CloseGroupChannel(c.Request.Context(), middleware.GetUserID(c), channelID); err != nil {
		writeError(c, h.logger, err, "close channel")
		return
	}
	c.Status(http.StatusNoContent)
}
