// Package policy holds the immutable workflow policy: the DRD axis catalog,
// the role permission matrix and the numeric workflow rules. A Policy is
// loaded once at startup and shared read-only by every component.
package policy

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var defaultPolicy []byte

// MaturityLevels 每个维度的成熟度等级数量
const MaturityLevels = 7

// Role 组织内角色
type Role string

const (
	RoleAdmin          Role = "ADMIN"
	RoleProjectManager Role = "PROJECT_MANAGER"
	RoleConsultant     Role = "CONSULTANT"
	RoleReviewer       Role = "REVIEWER"
	RoleClient         Role = "CLIENT"
)

// Permission 权限标识
type Permission string

const (
	PermAssessmentView      Permission = "assessment.view"
	PermAssessmentCreate    Permission = "assessment.create"
	PermAssessmentEdit      Permission = "assessment.edit"
	PermAssessmentSubmit    Permission = "assessment.submit"
	PermAssessmentReview    Permission = "assessment.review"
	PermAssessmentApprove   Permission = "assessment.approve"
	PermAssessmentRestore   Permission = "assessment.restore"
	PermAssessmentArchive   Permission = "assessment.archive"
	PermAssessmentManageAny Permission = "assessment.manage_any"
	PermCommentAdd          Permission = "comment.add"
	PermCommentResolveAny   Permission = "comment.resolve_any"
	PermStakeholderAssign   Permission = "stakeholder.assign"
)

var knownPermissions = map[Permission]struct{}{
	PermAssessmentView: {}, PermAssessmentCreate: {}, PermAssessmentEdit: {},
	PermAssessmentSubmit: {}, PermAssessmentReview: {}, PermAssessmentApprove: {},
	PermAssessmentRestore: {}, PermAssessmentArchive: {}, PermAssessmentManageAny: {},
	PermCommentAdd: {}, PermCommentResolveAny: {}, PermStakeholderAssign: {},
}

// Axis DRD 维度定义
type Axis struct {
	ID     string   `yaml:"id" json:"id" validate:"required"`
	Name   string   `yaml:"name" json:"name" validate:"required"`
	Levels []string `yaml:"levels" json:"levels" validate:"len=7,dive,required"`
}

// LevelTitle 返回等级标题,等级从 1 开始
func (a Axis) LevelTitle(level int) string {
	if level < 1 || level > len(a.Levels) {
		return ""
	}
	return a.Levels[level-1]
}

// Rules 流程数值规则
type Rules struct {
	ReviewQuorum           int
	MinJustificationLength int
	MaxCommentDepth        int
	ReviewSLADays          int
}

// DefaultRules 默认流程规则
func DefaultRules() Rules {
	return Rules{
		ReviewQuorum:           2,
		MinJustificationLength: 100,
		MaxCommentDepth:        3,
		ReviewSLADays:          14,
	}
}

type document struct {
	Axes  []Axis                `yaml:"axes" validate:"required,min=1,dive"`
	Roles map[Role][]Permission `yaml:"roles" validate:"required,min=1"`
}

// Policy 只读策略表
type Policy struct {
	axes      []Axis
	axisIndex map[string]int
	grants    map[Role]map[Permission]struct{}
	rules     Rules
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Parse 解析策略文件内容
func Parse(data []byte, rules Rules) (*Policy, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}
	if err := validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}
	if rules.ReviewQuorum < 1 || rules.MaxCommentDepth < 1 || rules.MinJustificationLength < 0 {
		return nil, fmt.Errorf("invalid workflow rules: %+v", rules)
	}

	p := &Policy{
		axes:      doc.Axes,
		axisIndex: make(map[string]int, len(doc.Axes)),
		grants:    make(map[Role]map[Permission]struct{}, len(doc.Roles)),
		rules:     rules,
	}
	for i, axis := range doc.Axes {
		if _, dup := p.axisIndex[axis.ID]; dup {
			return nil, fmt.Errorf("duplicate axis %q", axis.ID)
		}
		p.axisIndex[axis.ID] = i
	}
	for role, perms := range doc.Roles {
		set := make(map[Permission]struct{}, len(perms))
		for _, perm := range perms {
			if _, ok := knownPermissions[perm]; !ok {
				return nil, fmt.Errorf("role %s: unknown permission %q", role, perm)
			}
			set[perm] = struct{}{}
		}
		p.grants[role] = set
	}
	return p, nil
}

// Load 加载策略,path 为空时使用内置策略
func Load(path string, rules Rules) (*Policy, error) {
	if path == "" {
		return Parse(defaultPolicy, rules)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return Parse(data, rules)
}

// Default 内置策略 + 默认规则
func Default() *Policy {
	p, err := Parse(defaultPolicy, DefaultRules())
	if err != nil {
		panic(err)
	}
	return p
}

// Axes 返回维度列表副本
func (p *Policy) Axes() []Axis {
	out := make([]Axis, len(p.axes))
	copy(out, p.axes)
	return out
}

// AxisIDs 按目录顺序返回维度 ID
func (p *Policy) AxisIDs() []string {
	ids := make([]string, len(p.axes))
	for i, axis := range p.axes {
		ids[i] = axis.ID
	}
	return ids
}

// Axis 按 ID 查找维度
func (p *Policy) Axis(id string) (Axis, bool) {
	i, ok := p.axisIndex[id]
	if !ok {
		return Axis{}, false
	}
	return p.axes[i], true
}

// HasAxis 判断维度是否存在
func (p *Policy) HasAxis(id string) bool {
	_, ok := p.axisIndex[id]
	return ok
}

// Can 判断角色是否拥有权限
func (p *Policy) Can(role Role, perm Permission) bool {
	_, ok := p.grants[role][perm]
	return ok
}

// IsKnownRole 判断角色是否在策略中定义
func (p *Policy) IsKnownRole(role Role) bool {
	_, ok := p.grants[role]
	return ok
}

// Permissions 返回角色的权限(排序后)
func (p *Policy) Permissions(role Role) []Permission {
	perms := make([]Permission, 0, len(p.grants[role]))
	for perm := range p.grants[role] {
		perms = append(perms, perm)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })
	return perms
}

// Roles 返回全部角色(排序后)
func (p *Policy) Roles() []Role {
	roles := make([]Role, 0, len(p.grants))
	for role := range p.grants {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// Rules 返回流程规则
func (p *Policy) Rules() Rules {
	return p.rules
}
