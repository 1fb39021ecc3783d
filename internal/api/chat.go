package api

import (
	"net/http"

	"github.com/asjjun/naejango/internal/chat"
	"github.com/asjjun/naejango/internal/middleware"
	"github.com/asjjun/naejango/internal/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultPageSize = 20

type ChatHandler struct {
	svc    *chat.Service
	logger *zap.Logger
}

func NewChatHandler(svc *chat.Service, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{svc: svc, logger: logger}
}

type changeTitleRequest struct {
	Title string `json:"title"`
}

type chatPage struct {
	Items   []models.ChatInfo `json:"items"`
	Page    int               `json:"page"`
	Size    int               `json:"size"`
	Total   int64             `json:"total"`
	HasNext bool              `json:"has_next"`
}

// List handles GET /v1/chats?page=0&size=20
func (h *ChatHandler) List(c *gin.Context) {
	page, ok := queryInt(c, "page", 0)
	if !ok {
		return
	}
	size, ok := queryInt(c, "size", defaultPageSize)
	if !ok {
		return
	}

	result, err := h.svc.MyChatList(c.Request.Context(), middleware.GetUserID(c), page, size)
	if err != nil {
		writeError(c, h.logger, err, "list chats")
		return
	}
	c.JSON(http.StatusOK, chatPage{
		Items:   result.Items,
		Page:    result.Page,
		Size:    result.Size,
		Total:   result.Total,
		HasNext: result.HasNext(),
	})
}

// ChangeTitle handles PATCH /v1/chats/:id/title
func (h *ChatHandler) ChangeTitle(c *gin.Context) {
	chatID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req changeTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := h.svc.ChangeChatTitle(c.Request.Context(), middleware.GetUserID(c), chatID, req.Title); err != nil {
		writeError(c, h.logger, err, "change chat title")
		return
	}
	c.Status(http.StatusNoContent)
}
