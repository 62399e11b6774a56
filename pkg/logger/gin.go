package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request correlation id in and out.
const RequestIDHeader = "X-Request-ID"

const ginContextKey = "request_logger"

// RequestLogger tags every request with a request id, stores a scoped
// logger on the gin context and logs the request once it completes.
// userKey names the context value holding the authenticated user id.
func RequestLogger(l *Logger, userKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		scoped := l.WithRequestID(requestID)
		c.Set(ginContextKey, scoped)

		c.Next()

		if userID := c.GetString(userKey); userID != "" {
			scoped = scoped.WithUserID(userID)
		}
		scoped.LogHTTPRequest(c, time.Since(start))
	}
}

// FromGin returns the logger stored by RequestLogger, or the default logger.
func FromGin(c *gin.Context) *Logger {
	if v, ok := c.Get(ginContextKey); ok {
		if l, ok := v.(*Logger); ok {
			return l
		}
	}
	return GetDefault()
}
