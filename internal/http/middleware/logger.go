package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// quietPaths are liveness checks logged at debug level when they succeed.
var quietPaths = map[string]struct{}{
	"/health": {},
}

// RequestLogger logs one line per request. Failed requests carry the error
// kind sent to the client and any cause attached with c.Error.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.L()
	}

	return func(c *gin.Context) {
		start := time.Now()
		requestID := strings.TrimSpace(c.Request.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if principal, ok := GetPrincipal(c); ok {
			fields = append(fields, zap.String("user_id", principal.ID))
		}
		if kind := c.GetString(errorKindKey); kind != "" {
			fields = append(fields, zap.String("error_kind", kind))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.String()))
		}

		logger.Log(requestLevel(c.Request.URL.Path, status), "http_request", fields...)
	}
}

func requestLevel(path string, status int) zapcore.Level {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel
	case status >= 400:
		return zapcore.WarnLevel
	}
	if _, ok := quietPaths[path]; ok {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}
