package container

import (
	"context"
	"fmt"
	"time"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/api"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/auth"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/config"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/database"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/integration"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/lock"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/metrics"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/notification"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/policy"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/repository"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/service"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/websocket"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/workflow"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// redeliverBatch 启动时重新投递的发件箱事件上限
const redeliverBatch = 500

// Container 依赖注入容器
// 管理所有应用依赖,包括数据库、流程引擎、事件通道与后台任务
type Container struct {
	cfg    *config.Config
	log    *logrus.Logger
	db     *gorm.DB
	policy *policy.Policy

	redis        redis.UniversalClient
	fgaClient    *auth.OpenFGAClient
	validator    *auth.KeycloakTokenValidator
	roles        *auth.RoleResolver
	eventHandler *integration.EventHandler
	hub          *websocket.Hub
	hubCancel    context.CancelFunc

	assessmentSvc service.AssessmentService
	statsSvc      service.StatisticsService
	slaMonitor    *integration.SLAMonitor
	collector     *metrics.Collector
}

// LoadPolicy 按配置加载流程策略,规则数值取自 workflow 配置
func LoadPolicy(cfg config.WorkflowConfig) (*policy.Policy, error) {
	return policy.Load(cfg.PolicyFile, policy.Rules{
		ReviewQuorum:           cfg.ReviewQuorum,
		MinJustificationLength: cfg.MinJustificationLength,
		MaxCommentDepth:        cfg.MaxCommentDepth,
		ReviewSLADays:          cfg.ReviewSLADays,
	})
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件,失败时释放已创建的资源
func NewContainer(cfg *config.Config, log *logrus.Logger) (_ *Container, err error) {
	c := &Container{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	// 1. 策略
	c.policy, err = LoadPolicy(cfg.Workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow policy: %w", err)
	}

	// 2. 数据库（带重试机制）
	c.db, err = database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err = database.Migrate(c.db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// 3. 评估锁,配置 Redis 时跨实例生效
	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.Redis.Addr != "" {
		c.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		locker = lock.NewRedisLocker(c.redis, time.Duration(cfg.Redis.LockTTL)*time.Second)
	}

	// 4. 认证与角色
	if cfg.Auth.Mode == "keycloak" {
		c.validator = auth.NewKeycloakTokenValidator(cfg.Keycloak.Issuer, cfg.Keycloak.JWKSURL, nil)
	}
	c.roles = auth.NewRoleResolver(repository.NewMembershipRepository(c.db), time.Duration(cfg.Auth.RoleCacheTTL)*time.Second)

	// 5. 事件分发与下游通道
	c.eventHandler = integration.NewEventHandler(c.db, integration.EventHandlerOptions{
		WebhookURLs: cfg.Notification.WebhookURLs,
		Workers:     cfg.Notification.Workers,
		MaxRetries:  cfg.Notification.MaxRetries,
		Logger:      log,
	})

	c.hub = websocket.NewHub()
	var hubCtx context.Context
	hubCtx, c.hubCancel = context.WithCancel(context.Background())
	go c.hub.Run(hubCtx)
	c.eventHandler.AddChannel("websocket", c.hub)

	if len(cfg.Notification.ShoutrrrURLs) > 0 {
		notifier, nerr := notification.NewShoutrrrNotifier(cfg.Notification.ShoutrrrURLs, 10*time.Second)
		if nerr != nil {
			return nil, fmt.Errorf("failed to initialize notifier: %w", nerr)
		}
		c.eventHandler.AddChannel("shoutrrr", notifier)
	}

	if cfg.OpenFGA.APIURL != "" {
		c.fgaClient, err = auth.NewOpenFGAClientWithRetry(cfg.OpenFGA.APIURL, cfg.OpenFGA.StoreID, cfg.OpenFGA.ModelID, 3, time.Second)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenFGA client: %w", err)
		}
		c.eventHandler.AddChannel("openfga", auth.NewStakeholderSync(c.fgaClient))
	}

	// 6. 流程引擎与服务
	manager, err := integration.NewAssessmentManager(c.db, integration.ManagerOptions{
		Policy: c.policy,
		Roles:  c.roles,
		Locker: locker,
		Sink:   c.eventHandler,
		Logger: log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize assessment manager: %w", err)
	}
	c.assessmentSvc = service.NewAssessmentService(manager, service.NewAuditLogService(repository.NewAuditLogRepository(c.db)))
	c.statsSvc = service.NewStatisticsService(c.db, c.policy, c.roles)

	// 7. 后台任务
	c.slaMonitor = integration.NewSLAMonitor(manager, time.Duration(cfg.Workflow.SLACheckInterval)*time.Second, log)
	statuses := make([]string, len(workflow.AllStatuses))
	for i, s := range workflow.AllStatuses {
		statuses[i] = string(s)
	}
	c.collector = metrics.NewCollector(c.db, repository.NewAssessmentRepository(c.db), statuses, 30*time.Second)

	return c, nil
}

// Start 启动后台任务,并重新投递上次未完成的事件
func (c *Container) Start(ctx context.Context) {
	c.slaMonitor.Start()
	c.collector.Start()

	if n, err := c.eventHandler.RedeliverPending(ctx, redeliverBatch); err != nil {
		c.log.WithError(err).Warn("failed to redeliver pending events")
	} else if n > 0 {
		c.log.WithField("count", n).Info("redelivering pending events")
	}
}

// Router 构建 HTTP 路由
func (c *Container) Router() *gin.Engine {
	health := api.NewHealthController().Add("database", api.DatabaseCheck(c.db))
	if c.redis != nil {
		health.Add("redis", api.RedisCheck(c.redis))
	}
	if c.fgaClient != nil {
		health.Add("openfga", api.BoolCheck(c.fgaClient.CheckHealth))
	}

	authMiddleware := auth.HeaderAuthMiddleware()
	if c.validator != nil {
		authMiddleware = auth.KeycloakAuthMiddleware(c.validator)
	}

	return api.SetupRoutes(api.RouterDeps{
		Config:            c.cfg,
		Policy:            c.policy,
		AssessmentService: c.assessmentSvc,
		StatisticsService: c.statsSvc,
		Health:            health,
		Hub:               c.hub,
		Auth:              authMiddleware,
	})
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Policy 获取流程策略
func (c *Container) Policy() *policy.Policy {
	return c.policy
}

// AssessmentService 获取评估服务
func (c *Container) AssessmentService() service.AssessmentService {
	return c.assessmentSvc
}

// Close 停止后台任务并释放资源,可在初始化失败后调用
func (c *Container) Close() error {
	if c.slaMonitor != nil {
		c.slaMonitor.Stop()
	}
	if c.collector != nil {
		c.collector.Stop()
	}
	// 先停止分发器,确保排队事件在 hub 关闭前送达
	if c.eventHandler != nil {
		c.eventHandler.Stop()
	}
	if c.hubCancel != nil {
		c.hubCancel()
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.log.WithError(err).Warn("failed to close redis client")
		}
	}
	if c.db != nil {
		return database.Close(c.db)
	}
	return nil
}
