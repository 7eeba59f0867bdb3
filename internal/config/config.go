package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Env          string             `mapstructure:"env"` // 环境: development, production
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	OpenFGA      OpenFGAConfig      `mapstructure:"openfga"`
	Keycloak     KeycloakConfig     `mapstructure:"keycloak"`
	Auth         AuthConfig         `mapstructure:"auth"`
	CORS         CORSConfig         `mapstructure:"cors"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Log          LogConfig          `mapstructure:"log"`
	Workflow     WorkflowConfig     `mapstructure:"workflow"`
	Notification NotificationConfig `mapstructure:"notification"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // 秒
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // postgres, sqlite
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	Path            string `mapstructure:"path"` // sqlite 文件路径
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 秒
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 秒
}

// RedisConfig Redis 配置,Addr 为空时使用进程内锁
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	LockTTL  int    `mapstructure:"lock_ttl"` // 秒
}

// OpenFGAConfig OpenFGA 配置,APIURL 为空时不同步关系
type OpenFGAConfig struct {
	APIURL  string `mapstructure:"api_url"`
	StoreID string `mapstructure:"store_id"`
	ModelID string `mapstructure:"model_id"`
}

// KeycloakConfig Keycloak 配置
type KeycloakConfig struct {
	Issuer  string `mapstructure:"issuer"`
	JWKSURL string `mapstructure:"jwks_url"`
}

// AuthConfig 认证配置
type AuthConfig struct {
	Mode         string `mapstructure:"mode"`           // keycloak, header
	RoleCacheTTL int    `mapstructure:"role_cache_ttl"` // 秒
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxAge         int      `mapstructure:"max_age"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error
	Format string `mapstructure:"format"` // 日志格式: json, text
	Output string `mapstructure:"output"` // 输出位置: stdout, file, both
}

// WorkflowConfig 评估流程策略
type WorkflowConfig struct {
	PolicyFile             string `mapstructure:"policy_file"` // 为空时使用内置策略
	ReviewQuorum           int    `mapstructure:"review_quorum"`
	MinJustificationLength int    `mapstructure:"min_justification_length"`
	MaxCommentDepth        int    `mapstructure:"max_comment_depth"`
	ReviewSLADays          int    `mapstructure:"review_sla_days"`
	SLACheckInterval       int    `mapstructure:"sla_check_interval"` // 秒
}

// NotificationConfig 通知配置
type NotificationConfig struct {
	ShoutrrrURLs []string `mapstructure:"shoutrrr_urls"`
	WebhookURLs  []string `mapstructure:"webhook_urls"`
	MaxRetries   int      `mapstructure:"max_retries"`
	Workers      int      `mapstructure:"workers"`
}

// Load 加载配置,支持配置文件和环境变量
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.assessment-workflow")
		// 配置文件不存在时使用默认值
		_ = v.ReadInConfig()
	}

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Auth.Mode {
	case "keycloak", "header":
	default:
		return fmt.Errorf("unsupported auth mode %q", c.Auth.Mode)
	}
	if c.Workflow.ReviewQuorum < 1 {
		return fmt.Errorf("workflow.review_quorum must be at least 1")
	}
	if c.Workflow.MaxCommentDepth < 1 {
		return fmt.Errorf("workflow.max_comment_depth must be at least 1")
	}
	return nil
}

// IsProduction 判断是否为生产环境
func IsProduction(cfg *Config) bool {
	if cfg == nil {
		return false
	}
	return cfg.Env == "production"
}

// Default 返回默认配置
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	env := v.GetString("env")
	if env == "" {
		env = os.Getenv("APP_ENV")
		if env == "" {
			env = "development"
		}
	}
	v.SetDefault("env", env)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 10)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "assessments")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "assessments.db")

	// 连接池（根据环境设置默认值）
	if env == "production" {
		v.SetDefault("database.max_idle_conns", 20)
		v.SetDefault("database.max_open_conns", 200)
		v.SetDefault("database.conn_max_lifetime", 3600)
		v.SetDefault("database.conn_max_idle_time", 300)
	} else {
		v.SetDefault("database.max_idle_conns", 10)
		v.SetDefault("database.max_open_conns", 100)
		v.SetDefault("database.conn_max_lifetime", 3600)
		v.SetDefault("database.conn_max_idle_time", 600)
	}

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", 10)

	v.SetDefault("openfga.api_url", "")
	v.SetDefault("openfga.store_id", "")
	v.SetDefault("openfga.model_id", "")

	v.SetDefault("keycloak.issuer", "")
	v.SetDefault("keycloak.jwks_url", "")

	if env == "production" {
		v.SetDefault("auth.mode", "keycloak")
	} else {
		v.SetDefault("auth.mode", "header")
	}
	v.SetDefault("auth.role_cache_ttl", 60)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "Authorization", "X-Request-ID", "X-User-ID"})
	v.SetDefault("cors.max_age", 86400)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.rps", 20)
	v.SetDefault("rate_limit.burst", 40)

	if env == "production" {
		v.SetDefault("log.level", "warn")
		v.SetDefault("log.format", "json")
	} else {
		v.SetDefault("log.level", "debug")
		v.SetDefault("log.format", "text")
	}
	v.SetDefault("log.output", "stdout")

	v.SetDefault("workflow.policy_file", "")
	v.SetDefault("workflow.review_quorum", 2)
	v.SetDefault("workflow.min_justification_length", 100)
	v.SetDefault("workflow.max_comment_depth", 3)
	v.SetDefault("workflow.review_sla_days", 14)
	v.SetDefault("workflow.sla_check_interval", 3600)

	v.SetDefault("notification.shoutrrr_urls", []string{})
	v.SetDefault("notification.webhook_urls", []string{})
	v.SetDefault("notification.max_retries", 3)
	v.SetDefault("notification.workers", 4)
}
