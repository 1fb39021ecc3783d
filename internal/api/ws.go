package api

import (
	"github.com/asjjun/naejango/internal/middleware"
	"github.com/asjjun/naejango/internal/ws"
	"github.com/gin-gonic/gin"
)

type WSHandler struct {
	hub *ws.Hub
}

func NewWSHandler(hub *ws.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// Serve handles GET /v1/ws?token=...
func (h *WSHandler) Serve(c *gin.Context) {
	h.hub.ServeWS(c.Writer, c.Request, middleware.GetUserID(c))
}
