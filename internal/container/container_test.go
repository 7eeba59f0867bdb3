package container

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(t.TempDir(), "assessments.db")
	cfg.Auth.Mode = "header"
	cfg.Notification.Workers = 1
	return cfg
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

// TestNewContainer 测试容器初始化与关闭
func TestNewContainer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctr, err := NewContainer(testConfig(t), quietLogger())
	require.NoError(t, err)

	ctr.Start(context.Background())
	assert.NotNil(t, ctr.DB())
	assert.Len(t, ctr.Policy().AxisIDs(), 7)
	assert.Equal(t, 2, ctr.Policy().Rules().ReviewQuorum)

	router := ctr.Router()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/axes", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	require.NoError(t, ctr.Close())
}

// TestNewContainer_InvalidPolicy 测试策略文件错误时返回错误
func TestNewContainer_InvalidPolicy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workflow.PolicyFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := NewContainer(cfg, quietLogger())
	assert.Error(t, err)
}

// TestLoadPolicy_Rules 测试配置中的流程规则生效
func TestLoadPolicy_Rules(t *testing.T) {
	cfg := config.Default().Workflow
	cfg.ReviewQuorum = 3
	p, err := LoadPolicy(cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Rules().ReviewQuorum)
}
