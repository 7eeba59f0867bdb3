package integration

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/events"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/metrics"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/workflow"
	"github.com/sirupsen/logrus"
)

// reviewDue 本轮评审的截止时间
func (m *assessmentManager) reviewDue(submittedAt time.Time) time.Time {
	return submittedAt.Add(time.Duration(m.policy.Rules().ReviewSLADays) * 24 * time.Hour)
}

// FlagOverdueReviews 每轮评审超时只提醒一次,不做自动升级
func (m *assessmentManager) FlagOverdueReviews(ctx context.Context) (int, error) {
	now := m.now()
	cutoff := now.Add(-time.Duration(m.policy.Rules().ReviewSLADays) * 24 * time.Hour)
	rows, err := m.assessmentRepo.FindReviewOverdue(cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to find overdue reviews: %w", err)
	}

	flagged := 0
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return flagged, err
		}
		warned := false
		_, err := m.mutate(ctx, mutation{
			op:      "review_sla",
			id:      row.ID,
			actorID: SystemActor,
			system:  true,
			apply: func(s *txScope) error {
				a := s.current
				// 加锁后重新检查,评估可能已离开评审或已提醒
				if a.Status != workflow.StatusInReview || a.SubmittedAt == nil || a.SLAWarnedAt != nil {
					return nil
				}
				due := m.reviewDue(*a.SubmittedAt)
				if s.now.Before(due) {
					return nil
				}
				received, err := s.reviews.CountSubmittedReviewers(a.ID, a.CurrentVersion)
				if err != nil {
					return fmt.Errorf("failed to count reviews: %w", err)
				}
				at := s.now
				a.SLAWarnedAt = &at
				s.dirty = true
				s.emit(a, events.ReviewSLABreached{
					Version:     a.CurrentVersion,
					SubmittedAt: *a.SubmittedAt,
					DueAt:       due,
					Received:    received,
					Quorum:      m.policy.Rules().ReviewQuorum,
				})
				s.afterCommit = append(s.afterCommit, metrics.RecordSLABreach)
				warned = true
				return nil
			},
		})
		if err != nil {
			m.log.WithField("assessment_id", row.ID).WithError(err).Warn("failed to flag overdue review")
			continue
		}
		if warned {
			flagged++
		}
	}
	return flagged, nil
}

// SLAMonitor 定期检查评审时限
type SLAMonitor struct {
	manager  AssessmentManager
	interval time.Duration
	log      *logrus.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
	started atomic.Bool
}

// NewSLAMonitor 创建评审时限监控
func NewSLAMonitor(manager AssessmentManager, interval time.Duration, log *logrus.Logger) *SLAMonitor {
	if interval <= 0 {
		interval = time.Hour
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SLAMonitor{
		manager:  manager,
		interval: interval,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start 启动监控
func (m *SLAMonitor) Start() {
	if m.started.CompareAndSwap(false, true) {
		go m.run()
	}
}

// Stop 停止并等待退出,可重复调用
func (m *SLAMonitor) Stop() {
	m.once.Do(m.cancel)
	if m.started.Load() {
		<-m.done
	}
}

func (m *SLAMonitor) run() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	defer close(m.done)

	m.check()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.check()
		}
	}
}

func (m *SLAMonitor) check() {
	flagged, err := m.manager.FlagOverdueReviews(m.ctx)
	if err != nil && m.ctx.Err() == nil {
		m.log.WithError(err).Error("review SLA check failed")
		return
	}
	if flagged > 0 {
		m.log.WithField("flagged", flagged).Warn("assessments exceeded the review SLA")
	}
}
