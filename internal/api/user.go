package api

import (
	"net/http"

	"github.com/asjjun/naejango/internal/apperr"
	"github.com/asjjun/naejango/internal/middleware"
	"github.com/asjjun/naejango/internal/repository"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UserHandler struct {
	repo   repository.UserRepository
	logger *zap.Logger
}

func NewUserHandler(repo repository.UserRepository, logger *zap.Logger) *UserHandler {
	return &UserHandler{repo: repo, logger: logger}
}

// GetMe handles GET /v1/users/me
func (h *UserHandler) GetMe(c *gin.Context) {
	user, err := h.repo.GetByID(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		writeError(c, h.logger, err, "get user")
		return
	}
	// A valid token for a deleted user.
	if user == nil {
		writeError(c, h.logger, apperr.ErrUserNotFound, "get user")
		return
	}

	c.JSON(http.StatusOK, user)
}
