package rest

import (
	"time"

	"idp-node/pkg/logger"

	"github.com/gin-gonic/gin"
)

const AllGroups = "*"

type Middleware struct {
	Handler gin.HandlerFunc
	Group   string
}

func NewMiddleware(group string, handler gin.HandlerFunc) Middleware {
	return Middleware{
		Group:   group,
		Handler: handler,
	}
}

// RequestLogger logs one line per request through log instead of gin's
// default writer.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := map[string]any{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
		}
		if len(c.Errors) > 0 {
			log.ErrorWithFields(c.Errors.Last(), fields, "Request failed")
			return
		}
		log.WithFields(fields).Debug("Request served")
	}
}
