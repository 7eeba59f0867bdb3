package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/auth"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/config"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/database"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/integration"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/model"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/policy"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/repository"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/service"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/workflow"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	logrus.SetLevel(logrus.FatalLevel)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Detail  map[string]any  `json:"detail"`
}

type server struct {
	t      *testing.T
	router *gin.Engine
}

func newServer(t *testing.T) *server {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	members := repository.NewMembershipRepository(db)
	now := time.Now().UTC()
	for user, role := range map[string]policy.Role{
		"alice": policy.RoleConsultant,
		"pm":    policy.RoleProjectManager,
		"rev1":  policy.RoleReviewer,
		"rev2":  policy.RoleReviewer,
	} {
		require.NoError(t, members.Save(&model.MembershipModel{
			OrganizationID: "org-1", UserID: user, Role: string(role), CreatedAt: now, UpdatedAt: now,
		}))
	}

	p := policy.Default()
	roles := auth.NewRoleResolver(members, time.Minute)
	mgr, err := integration.NewAssessmentManager(db, integration.ManagerOptions{Policy: p, Roles: roles})
	require.NoError(t, err)

	cfg := config.Default()
	cfg.RateLimit.Enabled = false
	router := SetupRoutes(RouterDeps{
		Config:            cfg,
		Policy:            p,
		AssessmentService: service.NewAssessmentService(mgr, service.NewAuditLogService(repository.NewAuditLogRepository(db))),
		StatisticsService: service.NewStatisticsService(db, p, roles),
		Health:            NewHealthController().Add("database", DatabaseCheck(db)),
	})
	return &server{t: t, router: router}
}

func (s *server) do(method, path, user string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(auth.HeaderUserID, user)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (s *server) createAssessment() workflow.Assessment {
	s.t.Helper()
	w, env := s.do(http.MethodPost, "/api/v1/assessments", "alice", gin.H{"organizationId": "org-1", "title": "Plant review"})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	var a workflow.Assessment
	require.NoError(s.t, json.Unmarshal(env.Data, &a))
	return a
}

func (s *server) completeAxes(id string) {
	s.t.Helper()
	for _, axisID := range policy.Default().AxisIDs() {
		w, _ := s.do(http.MethodPatch, "/api/v1/assessments/"+id+"/axes/"+axisID, "alice", gin.H{
			"actualScore":   3,
			"targetScore":   5,
			"justification": strings.Repeat("x", 100),
		})
		require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	}
}

func TestAPI_ApprovalFlow(t *testing.T) {
	s := newServer(t)
	a := s.createAssessment()
	assert.Equal(t, workflow.StatusDraft, a.Status)
	s.completeAxes(a.ID)

	for _, rev := range []string{"rev1", "rev2"} {
		w, _ := s.do(http.MethodPost, "/api/v1/assessments/"+a.ID+"/stakeholders", "pm", gin.H{"userId": rev, "kind": "REVIEWER"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w, env := s.do(http.MethodPost, "/api/v1/assessments/"+a.ID+"/submit", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var submitted workflow.Assessment
	require.NoError(t, json.Unmarshal(env.Data, &submitted))
	assert.Equal(t, workflow.StatusInReview, submitted.Status)
	assert.Equal(t, 1, submitted.CurrentVersion)

	w, _ = s.do(http.MethodPut, "/api/v1/assessments/"+a.ID+"/reviews/draft", "rev1", gin.H{"comments": "looking"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var outcome integration.ReviewOutcome
	for _, rev := range []string{"rev1", "rev2"} {
		w, env = s.do(http.MethodPost, "/api/v1/assessments/"+a.ID+"/reviews", rev, gin.H{"recommendation": "APPROVE"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		require.NoError(t, json.Unmarshal(env.Data, &outcome))
	}
	assert.True(t, outcome.QuorumReached)
	assert.Equal(t, workflow.StatusAwaitingApproval, outcome.Assessment.Status)

	w, _ = s.do(http.MethodPost, "/api/v1/assessments/"+a.ID+"/reviews", "rev1", gin.H{"recommendation": "APPROVE"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, env = s.do(http.MethodPost, "/api/v1/assessments/"+a.ID+"/decision", "pm", gin.H{"decision": "APPROVE"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var decided workflow.Assessment
	require.NoError(t, json.Unmarshal(env.Data, &decided))
	assert.Equal(t, workflow.StatusApproved, decided.Status)

	w, env = s.do(http.MethodGet, "/api/v1/assessments/"+a.ID+"/reviews?version=1", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var reviews []workflow.Review
	require.NoError(t, json.Unmarshal(env.Data, &reviews))
	assert.Len(t, reviews, 2)

	w, env = s.do(http.MethodGet, "/api/v1/assessments/"+a.ID+"/history", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []workflow.StateChange
	require.NoError(t, json.Unmarshal(env.Data, &history))
	assert.Len(t, history, 3)

	w, env = s.do(http.MethodGet, "/api/v1/assessments?organizationId=org-1&status=APPROVED", "pm", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed []workflow.Assessment
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, a.ID, listed[0].ID)

	w, _ = s.do(http.MethodGet, "/api/v1/organizations/org-1/statistics", "pm", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPI_ErrorMapping(t *testing.T) {
	s := newServer(t)
	a := s.createAssessment()
	base := "/api/v1/assessments/" + a.ID

	w, env := s.do(http.MethodPost, base+"/submit", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(workflow.KindValidation), env.Detail["kind"])
	assert.NotEmpty(t, env.Detail["field"])

	w, env = s.do(http.MethodPost, base+"/decision", "pm", gin.H{"decision": "APPROVE"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, string(workflow.KindState), env.Detail["kind"])
	assert.Equal(t, string(workflow.StatusDraft), env.Detail["current_status"])

	w, env = s.do(http.MethodGet, base, "stranger", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, string(workflow.KindAuthorization), env.Detail["kind"])

	w, env = s.do(http.MethodGet, "/api/v1/assessments/missing-id", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(workflow.KindNotFound), env.Detail["kind"])

	w, _ = s.do(http.MethodGet, "/api/v1/assessments/bad%20id", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodGet, base+"/versions/zero", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodGet, base+"/versions/3", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(http.MethodPost, "/api/v1/assessments", "alice", gin.H{"title": "no org"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodPost, "/api/v1/assessments", "alice", gin.H{"organizationId": "org-1", "title": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodPost, "/api/v1/assessments", "alice", gin.H{"organizationId": "org-1", "title": strings.Repeat("t", 201)})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodGet, base, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPI_CommentsAndAxes(t *testing.T) {
	s := newServer(t)
	a := s.createAssessment()
	base := "/api/v1/assessments/" + a.ID

	w, env := s.do(http.MethodPost, base+"/comments", "alice", gin.H{"axisId": "culture", "body": "check the survey"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var root workflow.Comment
	require.NoError(t, json.Unmarshal(env.Data, &root))
	assert.Equal(t, 0, root.Depth)

	w, env = s.do(http.MethodPost, base+"/comments", "pm", gin.H{"axisId": "culture", "body": "done", "parentCommentId": root.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var reply workflow.Comment
	require.NoError(t, json.Unmarshal(env.Data, &reply))
	assert.Equal(t, 1, reply.Depth)

	w, _ = s.do(http.MethodPost, base+"/comments/"+root.ID+"/resolve", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = s.do(http.MethodGet, base+"/comments?axisId=culture", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var comments []workflow.Comment
	require.NoError(t, json.Unmarshal(env.Data, &comments))
	assert.Len(t, comments, 2)

	w, env = s.do(http.MethodGet, "/api/v1/axes", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var axes []policy.Axis
	require.NoError(t, json.Unmarshal(env.Data, &axes))
	assert.Len(t, axes, 7)
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	w, _ := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	h := NewHealthController().Add("redis", func(context.Context) error { return errors.New("connection refused") })
	r := gin.New()
	r.GET("/health", h.Check)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestRespondError_InternalHidden(t *testing.T) {
	r := gin.New()
	r.GET("/boom", func(c *gin.Context) { RespondError(c, errors.New("dial tcp 10.0.0.5:5432: refused")) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.5")
}

func TestRecoveryMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RecoveryMiddleware())
	r.GET("/panic", func(*gin.Context) { panic("unexpected") })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(auth.HeaderAuthMiddleware(), RateLimitMiddleware(0.001, 1))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(auth.HeaderUserID, user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusOK, call("alice"))
	assert.Equal(t, http.StatusTooManyRequests, call("alice"))
	assert.Equal(t, http.StatusOK, call("bob"))
}

func TestRequestIDAndCORS(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware(), CORSMiddleware(config.CORSConfig{
		AllowedOrigins: []string{"https://app.example.com"},
		AllowedMethods: []string{"GET"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         60,
	}))
	r.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, service.RequestInfoFrom(c.Request.Context()).RequestID)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))
	assert.Equal(t, "req-42", w.Body.String())
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
}
