package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	loggerKey       = "logger"
	RequestIDHeader = "X-Request-ID"
)

// LoggingMiddleware logs one line per request and stores a request-scoped
// logger (tagged with the request ID) in the gin context.
func LoggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)
		reqLogger := logger.With(zap.String("requestId", requestID))
		c.Set(loggerKey, reqLogger)

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("clientIp", c.ClientIP()),
		}
		if userID := c.GetString("userId"); userID != "" {
			fields = append(fields, zap.String("userId", userID))
		}
		if orgID := c.GetString("organizationId"); orgID != "" {
			fields = append(fields, zap.String("organizationId", orgID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		if status >= 500 {
			reqLogger.Warn("request failed", fields...)
			return
		}
		reqLogger.Info("request handled", fields...)
	}
}

func requestLogger(c *gin.Context) *zap.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(*zap.Logger); ok {
			return l
		}
	}
	return nil
}
