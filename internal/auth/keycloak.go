package auth

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ContextUserID gin 上下文中保存当前用户 ID 的 key
const ContextUserID = "user_id"

// HeaderUserID 开发模式下携带用户 ID 的请求头
const HeaderUserID = "X-User-ID"

// KeycloakClaims Keycloak JWT 声明
type KeycloakClaims struct {
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
	Name              string `json:"name"`
	jwt.RegisteredClaims
}

// KeycloakTokenValidator Keycloak Token 验证器
type KeycloakTokenValidator struct {
	issuer     string
	jwksURL    string
	keys       sync.Map
	httpClient *http.Client
}

// NewKeycloakTokenValidator 创建 Keycloak Token 验证器,jwksURL 为空时按 realm 默认地址
func NewKeycloakTokenValidator(issuer, jwksURL string, httpClient *http.Client) *KeycloakTokenValidator {
	if jwksURL == "" {
		jwksURL = strings.TrimRight(issuer, "/") + "/protocol/openid-connect/certs"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &KeycloakTokenValidator{
		issuer:     issuer,
		jwksURL:    jwksURL,
		httpClient: httpClient,
	}
}

// Issuer 返回 Issuer URL
func (v *KeycloakTokenValidator) Issuer() string {
	return v.issuer
}

// ValidateToken 校验签名、issuer 与有效期
func (v *KeycloakTokenValidator) ValidateToken(tokenString string) (*KeycloakClaims, error) {
	claims := &KeycloakClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, errors.New("missing kid in token header")
		}
		return v.GetPublicKey(kid)
	},
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to validate token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// GetPublicKey 获取公钥,优先使用缓存
func (v *KeycloakTokenValidator) GetPublicKey(kid string) (*rsa.PublicKey, error) {
	if cached, ok := v.keys.Load(kid); ok {
		return cached.(*rsa.PublicKey), nil
	}

	resp, err := v.httpClient.Get(v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var jwks struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("failed to decode JWKS: %w", err)
	}

	for _, key := range jwks.Keys {
		if key.Kid != kid || key.Kty != "RSA" {
			continue
		}
		publicKey, err := parseRSAPublicKey(key.N, key.E)
		if err != nil {
			return nil, fmt.Errorf("failed to parse RSA public key: %w", err)
		}
		v.keys.Store(kid, publicKey)
		return publicKey, nil
	}
	return nil, fmt.Errorf("key not found in JWKS: %s", kid)
}

// parseRSAPublicKey 解析 RSA 公钥
func parseRSAPublicKey(nStr, eStr string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode n: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode e: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

func unauthorized(c *gin.Context, message, detail string) {
	body := gin.H{"code": http.StatusUnauthorized, "message": message}
	if detail != "" {
		body["detail"] = detail
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, body)
}

// bearerToken 读取 Authorization 头,浏览器 WebSocket 无法设置请求头时读取 token 参数
func bearerToken(c *gin.Context) string {
	if token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return c.Query("token")
}

// KeycloakAuthMiddleware Keycloak JWT 认证中间件
func KeycloakAuthMiddleware(validator *KeycloakTokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			unauthorized(c, "missing bearer token", "")
			return
		}

		claims, err := validator.ValidateToken(token)
		if err != nil {
			unauthorized(c, "invalid token", err.Error())
			return
		}

		c.Set(ContextUserID, claims.Subject)
		c.Set("username", claims.PreferredUsername)
		c.Set("email", claims.Email)
		c.Next()
	}
}

// HeaderAuthMiddleware 开发模式认证,直接信任 X-User-ID 请求头
func HeaderAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if userID == "" {
			unauthorized(c, "missing "+HeaderUserID+" header", "")
			return
		}
		c.Set(ContextUserID, userID)
		c.Next()
	}
}

// UserID 返回已认证的用户 ID
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}
