package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/database"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/events"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/model"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/policy"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer = "https://sso.example.com/realms/consulting"
	testKid    = "key-1"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newKeycloakFixture(t *testing.T) (*KeycloakTokenValidator, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	t.Cleanup(httpmock.DeactivateAndReset)

	jwks := map[string]interface{}{
		"keys": []map[string]string{{
			"kid": testKid,
			"kty": "RSA",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}},
	}
	responder, err := httpmock.NewJsonResponder(http.StatusOK, jwks)
	require.NoError(t, err)
	httpmock.RegisterResponder(http.MethodGet, testIssuer+"/protocol/openid-connect/certs", responder)

	return NewKeycloakTokenValidator(testIssuer, "", client), key
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func claimsFor(subject, issuer string, expires time.Time) *KeycloakClaims {
	return &KeycloakClaims{
		PreferredUsername: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
}

func TestKeycloakTokenValidator_ValidateToken(t *testing.T) {
	v, key := newKeycloakFixture(t)
	expires := time.Now().Add(time.Hour)

	claims, err := v.ValidateToken(signToken(t, key, testKid, claimsFor("alice", testIssuer, expires)))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)

	// 第二次命中公钥缓存
	_, err = v.ValidateToken(signToken(t, key, testKid, claimsFor("bob", testIssuer, expires)))
	require.NoError(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())

	tests := []struct {
		name  string
		token string
	}{
		{"wrong issuer", signToken(t, key, testKid, claimsFor("alice", "https://evil.example.com", expires))},
		{"expired", signToken(t, key, testKid, claimsFor("alice", testIssuer, time.Now().Add(-time.Minute)))},
		{"unknown kid", signToken(t, key, "key-2", claimsFor("alice", testIssuer, expires))},
		{"garbage", "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ValidateToken(tt.token)
			assert.Error(t, err)
		})
	}
}

func TestKeycloakAuthMiddleware(t *testing.T) {
	v, key := newKeycloakFixture(t)

	r := gin.New()
	r.Use(KeycloakAuthMiddleware(v))
	r.GET("/me", func(c *gin.Context) { c.String(http.StatusOK, UserID(c)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, key, testKid, claimsFor("alice", testIssuer, time.Now().Add(time.Hour))))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", w.Body.String())
}

func TestHeaderAuthMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(HeaderAuthMiddleware())
	r.GET("/me", func(c *gin.Context) { c.String(http.StatusOK, UserID(c)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(HeaderUserID, " pm ")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "pm", w.Body.String())
}

func TestRoleResolver(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	defer database.Close(db)

	members := repository.NewMembershipRepository(db)
	now := time.Now().UTC()
	require.NoError(t, members.Save(&model.MembershipModel{
		OrganizationID: "org-1", UserID: "alice", Role: string(policy.RoleConsultant), CreatedAt: now, UpdatedAt: now,
	}))

	resolver := NewRoleResolver(members, time.Minute)
	ctx := context.Background()

	role, err := resolver.ResolveRole(ctx, "alice", "org-1")
	require.NoError(t, err)
	assert.Equal(t, policy.RoleConsultant, role)

	role, err = resolver.ResolveRole(ctx, "mallory", "org-1")
	require.NoError(t, err)
	assert.Equal(t, policy.Role(""), role)

	// 缓存期间看不到角色变更,失效后重新读取
	require.NoError(t, members.Save(&model.MembershipModel{
		OrganizationID: "org-1", UserID: "alice", Role: string(policy.RoleProjectManager), CreatedAt: now, UpdatedAt: now,
	}))
	role, _ = resolver.ResolveRole(ctx, "alice", "org-1")
	assert.Equal(t, policy.RoleConsultant, role)

	resolver.Invalidate("org-1", "alice")
	role, _ = resolver.ResolveRole(ctx, "alice", "org-1")
	assert.Equal(t, policy.RoleProjectManager, role)
}

type relationCall struct {
	userID, relation, objectType, objectID string
}

type fakeRelationStore struct {
	calls []relationCall
}

func (f *fakeRelationStore) SetRelation(_ context.Context, userID, relation, objectType, objectID string) error {
	f.calls = append(f.calls, relationCall{userID, relation, objectType, objectID})
	return nil
}

func (f *fakeRelationStore) CheckPermission(context.Context, string, string, string, string) (bool, error) {
	return false, nil
}

func TestStakeholderSync(t *testing.T) {
	store := &fakeRelationStore{}
	syncer := NewStakeholderSync(store)
	ctx := context.Background()

	assigned, err := events.New("a-1", "org-1", nil, events.StakeholderAssigned{UserID: "rev1", Kind: "REVIEWER", AssignedBy: "pm"}, time.Now())
	require.NoError(t, err)
	require.NoError(t, syncer.Publish(ctx, assigned))

	other, err := events.New("a-1", "org-1", nil, events.CommentResolved{CommentID: "c-1", ResolvedBy: "alice"}, time.Now())
	require.NoError(t, err)
	require.NoError(t, syncer.Publish(ctx, other))

	require.Len(t, store.calls, 1)
	assert.Equal(t, relationCall{"rev1", "reviewer", "assessment", "a-1"}, store.calls[0])
}

func TestGetPermissionModel(t *testing.T) {
	m := GetPermissionModel()
	assert.Contains(t, m, "type assessment")
	assert.Contains(t, m, "define reviewer: [user]")
	assert.Contains(t, m, "define approver: [user]")
}
