package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mssola/user_agent"
	"go.uber.org/zap"
)

const (
	RequestIDKey    = "request_id"
	HeaderRequestID = "X-Request-ID"
)

// AccessLogMiddleware 每个请求一行日志，带上客户端平台信息
func AccessLogMiddleware(lg *zap.Logger) gin.HandlerFunc {
	if lg == nil {
		lg = zap.NewNop()
	}
	lg = lg.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(RequestIDKey, reqID)
		c.Header(HeaderRequestID, reqID)

		c.Next()

		ua := user_agent.New(c.GetHeader("User-Agent"))
		browser, version := ua.Browser()
		fields := []zap.Field{
			zap.String("request_id", reqID),
			zap.String("method", c.Request.Method),
			zap.String("path", routeOf(c)),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", clientIPFromRequest(c)),
			zap.String("platform", ua.Platform()),
			zap.String("os", ua.OS()),
			zap.String("browser", browser+" "+version),
			zap.Bool("mobile", ua.Mobile()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			lg.Error("request", fields...)
		case status >= 400:
			lg.Warn("request", fields...)
		default:
			lg.Debug("request", fields...)
		}
	}
}

// RequestID 读取本次请求的 ID
func RequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}
