package api

import (
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/metrics"
	"github.com/gin-gonic/gin"
)

// MetricsHandler Prometheus 指标处理器
func MetricsHandler() gin.HandlerFunc {
	return gin.WrapH(metrics.Handler())
}
