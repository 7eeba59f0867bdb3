package api

import (
	"net/http"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/auth"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/config"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/policy"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/service"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/websocket"
	"github.com/gin-gonic/gin"
)

// RouterDeps 路由依赖
type RouterDeps struct {
	Config            *config.Config
	Policy            *policy.Policy
	AssessmentService service.AssessmentService
	StatisticsService service.StatisticsService
	Health            *HealthController
	Hub               *websocket.Hub // 为空时不开放 /ws
	Auth              gin.HandlerFunc // 为空时使用请求头认证
}

// SetupRoutes 配置路由
func SetupRoutes(deps RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(RecoveryMiddleware())
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware())
	router.Use(SecurityHeadersMiddleware(config.IsProduction(deps.Config)))
	router.Use(CORSMiddleware(deps.Config.CORS))
	router.Use(ErrorHandlerMiddleware())

	health := deps.Health
	if health == nil {
		health = NewHealthController()
	}
	router.GET("/health", health.Check)
	router.GET("/metrics", MetricsHandler())

	authenticate := deps.Auth
	if authenticate == nil {
		authenticate = auth.HeaderAuthMiddleware()
	}
	authed := []gin.HandlerFunc{authenticate, UserLogMiddleware()}
	if deps.Config.RateLimit.Enabled {
		authed = append(authed, RateLimitMiddleware(deps.Config.RateLimit.RPS, deps.Config.RateLimit.Burst))
	}

	if deps.Hub != nil {
		ws := append(append([]gin.HandlerFunc{}, authed...), websocket.Handler(deps.Hub, deps.Config.CORS.AllowedOrigins))
		router.GET("/ws", ws...)
	}

	assessments := NewAssessmentController(deps.AssessmentService)
	reviews := NewReviewController(deps.AssessmentService)
	versions := NewVersionController(deps.AssessmentService)
	comments := NewCommentController(deps.AssessmentService)
	catalog := NewCatalogController(deps.Policy, deps.StatisticsService)

	v1 := router.Group("/api/v1")
	v1.Use(authed...)
	{
		v1.GET("/axes", catalog.Axes)
		v1.GET("/organizations/:orgId/statistics", catalog.OrganizationStatistics)

		a := v1.Group("/assessments")
		{
			a.POST("", assessments.Create)
			a.GET("", assessments.List)
			a.GET("/:id", assessments.Get)
			a.PATCH("/:id/axes/:axisId", assessments.UpdateAxis)
			a.POST("/:id/submit", assessments.Submit)
			a.POST("/:id/revise", assessments.Revise)
			a.POST("/:id/archive", assessments.Archive)
			a.POST("/:id/decision", assessments.Decide)
			a.POST("/:id/stakeholders", assessments.AssignStakeholder)
			a.GET("/:id/stakeholders", assessments.ListStakeholders)
			a.GET("/:id/history", assessments.History)
			a.GET("/:id/audit", assessments.AuditTrail)

			a.PUT("/:id/reviews/draft", reviews.SaveDraft)
			a.POST("/:id/reviews", reviews.Submit)
			a.GET("/:id/reviews", reviews.List)

			a.GET("/:id/versions", versions.List)
			a.GET("/:id/versions/:version", versions.Get)
			a.POST("/:id/versions/:version/restore", versions.Restore)

			a.GET("/:id/comments", comments.List)
			a.POST("/:id/comments", comments.Add)
			a.POST("/:id/comments/:commentId/resolve", comments.Resolve)
		}
	}

	// 未匹配的路由返回 JSON 格式的 404
	router.NoRoute(func(c *gin.Context) {
		Error(c, http.StatusNotFound, "route not found", nil)
	})

	return router
}
