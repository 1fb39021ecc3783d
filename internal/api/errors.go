package api

import (
	"net/http"
	"strconv"

	"github.com/asjjun/naejango/internal/apperr"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// writeError maps business errors onto their status and code. Anything else is
// logged and reported as a 500 without internals.
func writeError(c *gin.Context, logger *zap.Logger, err error, action string) {
	if e, ok := apperr.From(err); ok {
		c.JSON(e.Status(), gin.H{"error": e.Code, "message": e.Message()})
		return
	}
	logger.Error("failed to "+action,
		zap.String("route", c.FullPath()),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL", "message": "failed to " + action})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": apperr.CodeInvalidInput, "message": msg})
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, "invalid '"+name+"' parameter")
		return 0, false
	}
	return n, true
}
