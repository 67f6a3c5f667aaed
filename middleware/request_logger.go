package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/princinho/authgate/dto"
	"github.com/sirupsen/logrus"
)

const RequestIDHeader = "X-Request-ID"

const requestIDKey = "requestID"

// RequestID echoes an incoming X-Request-ID or generates one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// Logger writes one structured line per request.
func Logger(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		entry := log.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"route":     route,
			"path":      c.Request.URL.Path,
			"status":    status,
			"latencyMs": time.Since(start).Milliseconds(),
			"clientIp":  c.ClientIP(),
			"requestId": c.GetString(requestIDKey),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}

		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("request")
		case status >= http.StatusBadRequest:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}

// Recovery turns a panic into the generic 500 body and logs the value.
func Recovery(log *logrus.Entry) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		log.WithFields(logrus.Fields{
			"panic":     recovered,
			"path":      c.Request.URL.Path,
			"requestId": c.GetString(requestIDKey),
		}).Error("recovered from panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{Msg: "server error"})
	})
}

// BodyLimit caps request bodies at n bytes.
func BodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
