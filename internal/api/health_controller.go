package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// HealthCheck 单项依赖检查
type HealthCheck func(ctx context.Context) error

// HealthController 健康检查控制器
type HealthController struct {
	checks map[string]HealthCheck
}

// NewHealthController 创建健康检查控制器
func NewHealthController() *HealthController {
	return &HealthController{checks: make(map[string]HealthCheck)}
}

// Add 注册依赖检查
func (c *HealthController) Add(name string, check HealthCheck) *HealthController {
	c.checks[name] = check
	return c
}

// DatabaseCheck 数据库连通性检查
func DatabaseCheck(db *gorm.DB) HealthCheck {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

// RedisCheck Redis 连通性检查
func RedisCheck(client redis.UniversalClient) HealthCheck {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// BoolCheck 将返回布尔值的检查包装为 HealthCheck
func BoolCheck(fn func(ctx context.Context) bool) HealthCheck {
	return func(ctx context.Context) error {
		if !fn(ctx) {
			return errors.New("unreachable")
		}
		return nil
	}
}

// Check 健康检查
func (c *HealthController) Check(ctx *gin.Context) {
	status := "healthy"
	checks := make(map[string]string, len(c.checks))

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx.Request.Context(), 5*time.Second)
		err := c.checks[name](checkCtx)
		cancel()
		if err != nil {
			status = "unhealthy"
			checks[name] = "unhealthy: " + err.Error()
			continue
		}
		checks[name] = "healthy"
	}

	httpStatus := http.StatusOK
	if status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	ctx.JSON(httpStatus, gin.H{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}
