package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/model"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/repository"
	"github.com/google/uuid"
)

// RequestInfo 审计需要的请求信息
type RequestInfo struct {
	RequestID string
	IP        string
	UserAgent string
}

type requestInfoKey struct{}

// WithRequestInfo 将请求信息放入 context
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFrom 读取请求信息
func RequestInfoFrom(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}

// AuditEntry 审计日志条目
type AuditEntry struct {
	ID           string          `json:"id"`
	UserID       string          `json:"userId"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resourceType"`
	ResourceID   string          `json:"resourceId"`
	RequestID    string          `json:"requestId,omitempty"`
	Details      json.RawMessage `json:"details,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// AuditLogService 审计日志服务
type AuditLogService interface {
	RecordAction(ctx context.Context, userID, organizationID, action, resourceType, resourceID string, details interface{}) error
	ListByResource(resourceType, resourceID string) ([]*AuditEntry, error)
}

// auditLogService 审计日志服务实现
type auditLogService struct {
	auditRepo repository.AuditLogRepository
	now       func() time.Time
}

// NewAuditLogService 创建审计日志服务
func NewAuditLogService(auditRepo repository.AuditLogRepository) AuditLogService {
	return &auditLogService{auditRepo: auditRepo, now: time.Now}
}

// RecordAction 记录操作审计日志
func (s *auditLogService) RecordAction(
	ctx context.Context,
	userID, organizationID, action, resourceType, resourceID string,
	details interface{},
) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}

	info := RequestInfoFrom(ctx)
	entry := &model.AuditLogModel{
		ID:             uuid.New().String(),
		UserID:         userID,
		OrganizationID: organizationID,
		Action:         action,
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		RequestID:      info.RequestID,
		IP:             info.IP,
		UserAgent:      info.UserAgent,
		Details:        detailsJSON,
		CreatedAt:      s.now().UTC(),
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	return s.auditRepo.Save(entry)
}

// ListByResource 按时间顺序列出资源的操作记录
func (s *auditLogService) ListByResource(resourceType, resourceID string) ([]*AuditEntry, error) {
	rows, err := s.auditRepo.FindByResource(resourceType, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit log: %w", err)
	}
	entries := make([]*AuditEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, &AuditEntry{
			ID:           row.ID,
			UserID:       row.UserID,
			Action:       row.Action,
			ResourceType: row.ResourceType,
			ResourceID:   row.ResourceID,
			RequestID:    row.RequestID,
			Details:      row.Details,
			CreatedAt:    row.CreatedAt,
		})
	}
	return entries, nil
}
