package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isdmx/codecheck/apperr"
	"github.com/isdmx/codecheck/logger"
)

// HeaderRequestID carries the correlation id in both directions
const HeaderRequestID = "X-Request-Id"

const requestIDKey = "request_id"

// maxRequestIDLength bounds a caller-supplied correlation id
const maxRequestIDLength = 128

// requestID honours an incoming X-Request-Id or generates one, and echoes it back
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set(HeaderRequestID, id)
		c.Next()
	}
}

// requireAPIKey rejects requests that do not carry the key header
func requireAPIKey(header string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if header == "" || strings.TrimSpace(c.GetHeader(header)) != "" {
			c.Next()
			return
		}
		writeError(c, apperr.Newf(apperr.Unauthorized, "missing %s header", header))
		c.Abort()
	}
}

// limitBody caps the request body so oversized payloads fail while decoding
func limitBody(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

// accessLog records one line per request
func accessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("HTTP request",
			zap.String(logger.FieldRequestID, c.GetString(requestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}

// recovery turns a handler panic into a generic 500
func recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Handler panicked",
					zap.String(logger.FieldRequestID, c.GetString(requestIDKey)),
					zap.Any("panic", r),
					zap.Stack("stack"))
				writeError(c, apperr.New(apperr.Internal))
				c.Abort()
			}
		}()
		c.Next()
	}
}
