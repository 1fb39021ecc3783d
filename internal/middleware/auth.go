package middleware

import (
	"net/http"
	"strings"

	"github.com/asjjun/naejango/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Context keys for claims stored in gin.Context.
//
// Handlers never read these directly; GetUserID and GetEmail do, so a typo in a
// key cannot silently turn into a nil lookup.
const (
	ContextKeyUserID = "user_id"
	ContextKeyEmail  = "email"
)

// AuthMiddleware returns a gin middleware that validates access tokens.
//
// How it sits in the chain:
//   - It runs BEFORE the handler (JoinGroupChannel, SendMessage, ...).
//   - On a missing or invalid token it aborts with 401 and the handler never runs.
//   - On a valid token it stores the claims with c.Set and calls c.Next.
//
// The token is read from "Authorization: Bearer <token>". Browsers cannot set
// headers on a websocket handshake, so a "token" query parameter is accepted when
// the header is absent.
//
// secret is a parameter rather than read from config, so tests can pass their own.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Step 1: find the token (header first, then ?token=).
		tokenString, msg := bearerToken(c)
		if tokenString == "" {
			abortUnauthenticated(c, msg)
			return
		}

		// Step 2: verify it. Expired, tampered and foreign tokens all end here.
		claims, err := auth.ParseToken(tokenString, secret)
		if err != nil {
			abortUnauthenticated(c, "invalid or expired token")
			return
		}

		// Step 3: hand the caller's identity to the rest of the chain.
		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyEmail, claims.Email)
		c.Next()
	}
}

// bearerToken returns the token, or "" and the reason it is missing.
// Split "Bearer eyJhbG..." into ["Bearer", "eyJhbG..."]; the scheme is
// case-insensitive.
func bearerToken(c *gin.Context) (string, string) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if token := c.Query("token"); token != "" {
			return token, ""
		}
		return "", "missing authorization header"
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", "invalid authorization format, expected: Bearer <token>"
	}
	return parts[1], ""
}

func abortUnauthenticated(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   "UNAUTHENTICATED",
		"message": msg,
	})
}

// GetUserID returns the authenticated user, or uuid.Nil outside AuthMiddleware.
func GetUserID(c *gin.Context) uuid.UUID {
	val, exists := c.Get(ContextKeyUserID)
	if !exists {
		return uuid.Nil
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return id
}

func GetEmail(c *gin.Context) string {
	val, exists := c.Get(ContextKeyEmail)
	if !exists {
		return ""
	}
	email, ok := val.(string)
	if !ok {
		return ""
	}
	return email
}
