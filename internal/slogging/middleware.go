package slogging

import (
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
)

// LoggerMiddleware returns a Gin middleware for logging requests using slog
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := Get()

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		statusCode := c.Writer.Status()
		logAttrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status_code", statusCode),
			slog.Duration("duration", latency),
			slog.Int64("response_size", int64(c.Writer.Size())),
		}

		switch {
		case statusCode >= 500:
			logger.GetSlogger().Error("Request completed with server error", logAttrs...)
		case statusCode >= 400:
			logger.GetSlogger().Warn("Request completed with client error", logAttrs...)
		default:
			logger.GetSlogger().Info("Request completed", logAttrs...)
		}
	}
}

// Recoverer creates middleware for recovering from panics
func Recoverer() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				Get().Error("PANIC in request handler - Path: %s, Error: %v, Stack: %s",
					c.Request.URL.Path, err, debug.Stack())
				c.AbortWithStatus(500)
			}
		}()
		c.Next()
	}
}
