package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/policy"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/repository"
	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"
)

// RoleResolver 基于组织成员表解析角色,结果按 TTL 缓存
//
// 非成员缓存为空角色,引擎据此拒绝访问。
type RoleResolver struct {
	members repository.MembershipRepository
	cache   *cache.Cache
}

// NewRoleResolver 创建角色解析器,ttl 不大于 0 时不缓存
func NewRoleResolver(members repository.MembershipRepository, ttl time.Duration) *RoleResolver {
	r := &RoleResolver{members: members}
	if ttl > 0 {
		r.cache = cache.New(ttl, 2*ttl)
	}
	return r
}

func roleKey(organizationID, userID string) string {
	return organizationID + "/" + userID
}

// ResolveRole 返回用户在组织内的角色
func (r *RoleResolver) ResolveRole(_ context.Context, userID, organizationID string) (policy.Role, error) {
	key := roleKey(organizationID, userID)
	if r.cache != nil {
		if cached, ok := r.cache.Get(key); ok {
			return cached.(policy.Role), nil
		}
	}

	name, err := r.members.FindRole(organizationID, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("failed to resolve role: %w", err)
	}
	role := policy.Role(name)

	if r.cache != nil {
		r.cache.SetDefault(key, role)
	}
	return role, nil
}

// Invalidate 成员角色变更后清除缓存
func (r *RoleResolver) Invalidate(organizationID, userID string) {
	if r.cache != nil {
		r.cache.Delete(roleKey(organizationID, userID))
	}
}

// Flush 清空全部缓存
func (r *RoleResolver) Flush() {
	if r.cache != nil {
		r.cache.Flush()
	}
}
