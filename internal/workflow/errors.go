package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// Kind 错误分类,调用方据此决定如何向用户展示
type Kind string

const (
	KindValidation    Kind = "validation"
	KindState         Kind = "state"
	KindAuthorization Kind = "authorization"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
)

// 分类哨兵错误,配合 errors.Is 使用
var (
	ErrValidation    = errors.New("validation error")
	ErrState         = errors.New("state error")
	ErrAuthorization = errors.New("authorization error")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
)

// Error 流程错误
//
// 除 Kind 与 Message 外,各字段按分类选填:
// 校验错误填写 Field,状态错误填写 Current 与 Required,
// 授权错误填写 Permission,未找到错误填写 Resource 与 ID。
type Error struct {
	Kind       Kind
	Message    string
	Field      string
	Current    Status
	Required   []Status
	Permission string
	Resource   string
	ID         string
	Cause      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(" error: ")
	b.WriteString(e.Message)
	if e.Field != "" {
		fmt.Fprintf(&b, " (field %s)", e.Field)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is 按分类匹配哨兵错误
func (e *Error) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrState:
		return e.Kind == KindState
	case ErrAuthorization:
		return e.Kind == KindAuthorization
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrConflict:
		return e.Kind == KindConflict
	}
	return false
}

// Detail 返回面向用户的结构化详情
func (e *Error) Detail() map[string]interface{} {
	detail := map[string]interface{}{"kind": e.Kind}
	if e.Field != "" {
		detail["field"] = e.Field
	}
	if e.Current != "" {
		detail["current_status"] = e.Current
	}
	if len(e.Required) > 0 {
		detail["required_status"] = e.Required
	}
	if e.Permission != "" {
		detail["permission"] = e.Permission
	}
	if e.Resource != "" {
		detail["resource"] = e.Resource
		detail["id"] = e.ID
	}
	return detail
}

// NewValidationError 输入校验失败
func NewValidationError(field, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// NewStateError 当前状态不允许该操作
func NewStateError(op string, current Status, required ...Status) *Error {
	names := make([]string, len(required))
	for i, s := range required {
		names[i] = string(s)
	}
	return &Error{
		Kind:     KindState,
		Message:  fmt.Sprintf("%s requires status %s, assessment is %s", op, strings.Join(names, " or "), current),
		Current:  current,
		Required: required,
	}
}

// NewAuthorizationError 缺少权限或不是指定参与人
func NewAuthorizationError(permission, format string, args ...interface{}) *Error {
	return &Error{Kind: KindAuthorization, Permission: permission, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError 资源不存在
func NewNotFoundError(resource, id string) *Error {
	return &Error{
		Kind:     KindNotFound,
		Message:  fmt.Sprintf("%s %s not found", resource, id),
		Resource: resource,
		ID:       id,
	}
}

// NewConflictError 并发修改冲突
func NewConflictError(message string, cause error) *Error {
	return &Error{Kind: KindConflict, Message: message, Cause: cause}
}

// KindOf 返回错误分类,非流程错误返回空字符串
func KindOf(err error) Kind {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	return ""
}
