package database

import (
	"context"
	"fmt"
	"time"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/config"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/model"
	gormlogrus "github.com/onrik/gorm-logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime int // 秒
	ConnMaxIdleTime int // 秒
}

// BuildDSN 构建 PostgreSQL DSN
func BuildDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// poolConfigFor 合并配置值与默认值
func poolConfigFor(cfg config.DatabaseConfig) PoolConfig {
	pool := PoolConfig{
		MaxIdleConns:    cfg.MaxIdleConns,
		MaxOpenConns:    cfg.MaxOpenConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}
	if pool.MaxIdleConns <= 0 {
		pool.MaxIdleConns = 10
	}
	if pool.MaxOpenConns <= 0 {
		pool.MaxOpenConns = 100
	}
	if pool.ConnMaxLifetime <= 0 {
		pool.ConnMaxLifetime = 3600
	}
	if pool.ConnMaxIdleTime <= 0 {
		pool.ConnMaxIdleTime = 600
	}
	return pool
}

// dialectorFor 根据驱动选择 gorm 方言
func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "postgres":
		return postgres.Open(BuildDSN(cfg)), nil
	case "sqlite":
		// 开启外键与 WAL,写入时等待锁
		return sqlite.Open(cfg.Path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Connect 连接数据库
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	// SQL 日志经 logrus 标准记录器输出,级别随日志配置
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogrus.New(),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	pool := poolConfigFor(cfg)
	if cfg.Driver == "sqlite" {
		// SQLite 单写者
		pool.MaxOpenConns = 1
		pool.MaxIdleConns = 1
	}
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(pool.ConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(pool.ConnMaxIdleTime) * time.Second)

	return db, nil
}

// OpenInMemory 打开内存 SQLite 并完成迁移,用于测试和本地调试
func OpenInMemory() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	// 内存库按连接隔离,只保留一个连接
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Models 需要迁移的全部模型
func Models() []interface{} {
	return []interface{}{
		&model.AssessmentModel{},
		&model.AssessmentVersionModel{},
		&model.ReviewModel{},
		&model.CommentModel{},
		&model.StakeholderModel{},
		&model.MembershipModel{},
		&model.StateHistoryModel{},
		&model.EventModel{},
		&model.AuditLogModel{},
	}
}

// Migrate 执行数据库迁移
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}
	if err := CreateIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// CreateIndexes 创建模型标签之外的索引
func CreateIndexes(db *gorm.DB) error {
	statements := []struct {
		name string
		sql  string
	}{
		{"idx_assessments_org_status", "CREATE INDEX IF NOT EXISTS idx_assessments_org_status ON assessments(organization_id, status)"},
		{"idx_history_assessment_created", "CREATE INDEX IF NOT EXISTS idx_history_assessment_created ON state_history(assessment_id, created_at)"},
		{"idx_audit_resource", "CREATE INDEX IF NOT EXISTS idx_audit_resource ON audit_logs(resource_type, resource_id)"},
		{"idx_reviews_open", "CREATE INDEX IF NOT EXISTS idx_reviews_open ON reviews(assessment_id, reviewer_id, submitted_at)"},
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt.sql).Error; err != nil {
			return fmt.Errorf("failed to create %s: %w", stmt.name, err)
		}
	}

	// PostgreSQL 的 JSONB 字段使用 GIN 索引
	if db.Dialector.Name() == "postgres" {
		if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_assessments_axes_gin ON assessments USING GIN (axes)").Error; err != nil {
			return fmt.Errorf("failed to create idx_assessments_axes_gin: %w", err)
		}
	}
	return nil
}

// ConnectWithRetry 带重试的数据库连接
func ConnectWithRetry(cfg config.DatabaseConfig, maxRetries int, retryInterval time.Duration) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	for i := 0; i < maxRetries; i++ {
		db, err = Connect(cfg)
		if err == nil {
			if err = ping(db); err == nil {
				return db, nil
			}
		}

		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2 // 指数退避
		}
	}

	return nil, fmt.Errorf("failed to connect database after %d retries: %w", maxRetries, err)
}

func ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// CheckHealth 检查数据库连接健康状态
func CheckHealth(db *gorm.DB) bool {
	if db == nil {
		return false
	}
	return ping(db) == nil
}

// Close 关闭连接
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
