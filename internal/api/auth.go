package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/asjjun/naejango/internal/apperr"
	"github.com/asjjun/naejango/internal/auth"
	"github.com/asjjun/naejango/internal/repository"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler serves signup and login, the only public endpoints besides health.
type AuthHandler struct {
	userRepo  repository.UserRepository
	jwtSecret string
	tokenTTL  time.Duration
	logger    *zap.Logger
}

func NewAuthHandler(userRepo repository.UserRepository, jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

type signupRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"display_name" binding:"required,max=50"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type authResponse struct {
	Token string `json:"token"`
}

// Signup handles POST /v1/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	existing, err := h.userRepo.GetByEmail(c.Request.Context(), email)
	if err != nil {
		writeError(c, h.logger, err, "sign up")
		return
	}
	if existing != nil {
		writeError(c, h.logger, apperr.ErrEmailAlreadyExists, "sign up")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(c, h.logger, err, "sign up")
		return
	}

	// The lookup above only catches the common case. Two signups for the same
	// email can both get past it; the unique index then rejects the second insert.
	user, err := h.userRepo.Create(c.Request.Context(), email, strings.TrimSpace(req.DisplayName), hash)
	if errors.Is(err, repository.ErrDuplicate) {
		writeError(c, h.logger, apperr.ErrEmailAlreadyExists, "sign up")
		return
	}
	if err != nil {
		writeError(c, h.logger, err, "sign up")
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Email, h.jwtSecret, h.tokenTTL)
	if err != nil {
		writeError(c, h.logger, err, "sign up")
		return
	}

	h.logger.Info("user signed up", zap.String("user_id", user.ID.String()))
	c.JSON(http.StatusCreated, authResponse{Token: token})
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	user, err := h.userRepo.GetByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		writeError(c, h.logger, err, "log in")
		return
	}
	// Same answer for unknown email and wrong password.
	if user == nil {
		writeError(c, h.logger, apperr.ErrInvalidCredentials, "log in")
		return
	}

	ok, err := auth.CheckPassword(user.PasswordHash, req.Password)
	if err != nil {
		writeError(c, h.logger, err, "log in")
		return
	}
	if !ok {
		writeError(c, h.logger, apperr.ErrInvalidCredentials, "log in")
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Email, h.jwtSecret, h.tokenTTL)
	if err != nil {
		writeError(c, h.logger, err, "log in")
		return
	}

	c.JSON(http.StatusOK, authResponse{Token: token})
}
