package middleware

import (
	"strconv"
	"time"

	"github.com/asjjun/naejango/internal/observ"
	"github.com/gin-gonic/gin"
)

// Metrics records request latency labelled by the matched route pattern, so path
// parameters do not explode the label set.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		observ.HTTPDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
