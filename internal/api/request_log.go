package api

import (
	"time"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/auth"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/logger"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/metrics"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// HeaderRequestID 请求 ID 头
const HeaderRequestID = "X-Request-ID"

// RequestIDMiddleware 生成或透传请求 ID,并放入请求上下文的日志条目
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(HeaderRequestID, requestID)

		ctx := logger.WithContext(c.Request.Context(), logger.FromContext(c.Request.Context()).WithField("request_id", requestID))
		ctx = service.WithRequestInfo(ctx, service.RequestInfo{
			RequestID: requestID,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// UserLogMiddleware 认证通过后将用户 ID 加入日志条目
func UserLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := auth.UserID(c); userID != "" {
			ctx := c.Request.Context()
			c.Request = c.Request.WithContext(logger.WithContext(ctx, logger.FromContext(ctx).WithField("user_id", userID)))
		}
		c.Next()
	}
}

// RequestLogMiddleware 请求日志中间件
func RequestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		// 使用路由模板作为指标标签,避免路径参数造成标签膨胀
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordAPIRequest(method, route, status, latency.Seconds())

		entry := logger.FromContext(c.Request.Context()).WithFields(logrus.Fields{
			"method":  method,
			"path":    c.Request.URL.Path,
			"status":  status,
			"latency": latency.String(),
			"ip":      c.ClientIP(),
		})

		if status >= 500 {
			entry.Error("API request")
		} else if status >= 400 {
			entry.Warn("API request")
		} else {
			entry.Info("API request")
		}
	}
}
