package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	assessmentsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assessments_created_total",
			Help: "Total number of assessments created",
		},
	)

	// 状态转换
	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_transitions_total",
			Help: "Total number of assessment status transitions",
		},
		[]string{"from", "to"},
	)

	reviewsSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_reviews_submitted_total",
			Help: "Total number of submitted reviews",
		},
		[]string{"recommendation"},
	)

	quorumReachedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assessment_review_quorum_reached_total",
			Help: "Number of review rounds that reached quorum",
		},
	)

	versionsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_versions_created_total",
			Help: "Total number of assessment versions",
		},
		[]string{"origin"}, // submit, restore
	)

	// 并发冲突
	conflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_conflicts_total",
			Help: "Number of operations rejected by optimistic locking",
		},
		[]string{"operation"},
	)

	slaBreachesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assessment_review_sla_breaches_total",
			Help: "Number of review rounds that exceeded the review SLA",
		},
	)

	eventDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_event_deliveries_total",
			Help: "Event deliveries by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	// 状态分布
	assessmentsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "assessments_by_status",
			Help: "Number of assessments by status",
		},
		[]string{"status"},
	)
)

var once sync.Once

func init() {
	prometheus.MustRegister(
		apiRequestsTotal,
		apiRequestDuration,
		assessmentsCreatedTotal,
		transitionsTotal,
		reviewsSubmittedTotal,
		quorumReachedTotal,
		versionsCreatedTotal,
		conflictsTotal,
		slaBreachesTotal,
		eventDeliveriesTotal,
		databaseConnectionsActive,
		databaseConnectionsIdle,
		assessmentsByStatus,
	)

	once.Do(func() {
		// 已注册时忽略错误
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	apiRequestsTotal.WithLabelValues(method, path, fmt.Sprintf("%d", status)).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordAssessmentCreated 记录评估创建
func RecordAssessmentCreated() {
	assessmentsCreatedTotal.Inc()
}

// RecordTransition 记录状态转换
func RecordTransition(from, to string) {
	transitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordReviewSubmitted 记录评审提交
func RecordReviewSubmitted(recommendation string) {
	reviewsSubmittedTotal.WithLabelValues(recommendation).Inc()
}

// RecordQuorumReached 记录评审达到法定人数
func RecordQuorumReached() {
	quorumReachedTotal.Inc()
}

// RecordVersionCreated 记录新版本
func RecordVersionCreated(origin string) {
	versionsCreatedTotal.WithLabelValues(origin).Inc()
}

// RecordConflict 记录乐观锁冲突
func RecordConflict(operation string) {
	conflictsTotal.WithLabelValues(operation).Inc()
}

// RecordSLABreach 记录评审超时
func RecordSLABreach() {
	slaBreachesTotal.Inc()
}

// RecordEventDelivery 记录事件投递结果
func RecordEventDelivery(channel, outcome string) {
	eventDeliveriesTotal.WithLabelValues(channel, outcome).Inc()
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.InUse))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	return nil
}

// UpdateAssessmentsByStatus 更新状态分布
func UpdateAssessmentsByStatus(counts map[string]int64, statuses []string) {
	for _, status := range statuses {
		assessmentsByStatus.WithLabelValues(status).Set(float64(counts[status]))
	}
}
