package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeCounter struct {
	counts map[string]int64
	err    error
}

func (f fakeCounter) CountByStatus() (map[string]int64, error) {
	return f.counts, f.err
}

// TestRecordTransition 测试状态转换计数
func TestRecordTransition(t *testing.T) {
	before := testutil.ToFloat64(transitionsTotal.WithLabelValues("IN_REVIEW", "AWAITING_APPROVAL"))
	RecordTransition("IN_REVIEW", "AWAITING_APPROVAL")
	after := testutil.ToFloat64(transitionsTotal.WithLabelValues("IN_REVIEW", "AWAITING_APPROVAL"))
	assert.Equal(t, before+1, after)
}

// TestCollector_CollectOnce 测试状态分布刷新
func TestCollector_CollectOnce(t *testing.T) {
	c := NewCollector(nil, fakeCounter{counts: map[string]int64{"DRAFT": 3}}, []string{"DRAFT", "APPROVED"}, time.Hour)
	c.CollectOnce()

	assert.Equal(t, 3.0, testutil.ToFloat64(assessmentsByStatus.WithLabelValues("DRAFT")))
	assert.Equal(t, 0.0, testutil.ToFloat64(assessmentsByStatus.WithLabelValues("APPROVED")))

	// 统计失败时保留原值
	c = NewCollector(nil, fakeCounter{err: errors.New("db down")}, []string{"DRAFT"}, time.Hour)
	c.CollectOnce()
	assert.Equal(t, 3.0, testutil.ToFloat64(assessmentsByStatus.WithLabelValues("DRAFT")))
}

// TestCollector_StartStop 测试启动与停止
func TestCollector_StartStop(t *testing.T) {
	c := NewCollector(nil, nil, nil, 10*time.Millisecond)
	c.Start()
	time.Sleep(30 * time.Millisecond)
	c.Stop()
}

// TestHandler 测试指标输出
func TestHandler(t *testing.T) {
	RecordAPIRequest("GET", "/api/v1/assessments", 200, 0.01)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "api_requests_total"))
}

// TestUpdateDatabaseConnections_Nil 测试空连接
func TestUpdateDatabaseConnections_Nil(t *testing.T) {
	assert.Error(t, UpdateDatabaseConnections(nil))
}
