package api

import (
	"net/http"
	"time"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// limiterIdleTTL 客户端限流器闲置多久后回收
const limiterIdleTTL = 10 * time.Minute

// RateLimitMiddleware 按客户端限流,已认证请求按用户,否则按 IP
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	limiters := cache.New(limiterIdleTTL, limiterIdleTTL)

	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if userID := auth.UserID(c); userID != "" {
			key = "user:" + userID
		}

		var limiter *rate.Limiter
		if v, ok := limiters.Get(key); ok {
			limiter = v.(*rate.Limiter)
		} else {
			limiter = rate.NewLimiter(rate.Limit(rps), burst)
			// 并发首次请求时以先写入者为准
			if err := limiters.Add(key, limiter, cache.DefaultExpiration); err != nil {
				if v, ok := limiters.Get(key); ok {
					limiter = v.(*rate.Limiter)
				}
			}
		}
		limiters.SetDefault(key, limiter)

		if !limiter.Allow() {
			Error(c, http.StatusTooManyRequests, "too many requests", nil)
			return
		}
		c.Next()
	}
}
