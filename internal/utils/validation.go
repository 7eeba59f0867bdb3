package utils

import (
	"regexp"
	"strconv"
	"strings"
)

// MaxIDLength ID 最大长度,与数据库列宽一致
const MaxIDLength = 64

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateID 验证路径中的资源 ID
func ValidateID(id string) error {
	if id == "" {
		return ErrEmptyID
	}
	if len(id) > MaxIDLength {
		return ErrIDTooLong
	}
	if !idPattern.MatchString(id) {
		return ErrInvalidIDFormat
	}
	return nil
}

// ParseVersion 解析路径中的版本号,版本从 1 开始
func ParseVersion(raw string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v < 1 {
		return 0, ErrInvalidVersion
	}
	return v, nil
}

// 错误定义
var (
	ErrEmptyID         = &ValidationError{Code: "EMPTY_ID", Message: "id cannot be empty"}
	ErrInvalidIDFormat = &ValidationError{Code: "INVALID_ID_FORMAT", Message: "id contains invalid characters"}
	ErrIDTooLong       = &ValidationError{Code: "ID_TOO_LONG", Message: "id exceeds maximum length"}
	ErrInvalidVersion  = &ValidationError{Code: "INVALID_VERSION", Message: "version must be a positive integer"}
)

// ValidationError 验证错误
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
