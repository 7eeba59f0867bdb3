package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/events"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/lock"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/logger"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/metrics"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/model"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/policy"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/repository"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/workflow"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SystemActor 系统触发的操作人
const SystemActor = "system"

// RoleResolver 解析用户在组织内的角色,非成员返回空角色
type RoleResolver interface {
	ResolveRole(ctx context.Context, userID, organizationID string) (policy.Role, error)
}

// ListFilter 评估列表过滤条件
type ListFilter struct {
	OrganizationID string
	OwnerID        string
	Status         workflow.Status
	Offset         int
	Limit          int
}

// ReviewOutcome 评审提交结果
type ReviewOutcome struct {
	Review         *workflow.Review     `json:"review"`
	Assessment     *workflow.Assessment `json:"assessment"`
	SubmittedCount int                  `json:"submittedCount"`
	Quorum         int                  `json:"quorum"`
	QuorumReached  bool                 `json:"quorumReached"`
}

// AssessmentManager 评估流程引擎
type AssessmentManager interface {
	Create(ctx context.Context, actorID, organizationID, title string) (*workflow.Assessment, error)
	Get(ctx context.Context, id, actorID string) (*workflow.Assessment, error)
	List(ctx context.Context, actorID string, filter ListFilter) ([]*workflow.Assessment, int64, error)
	UpdateAxis(ctx context.Context, id, actorID, axisID string, patch workflow.AxisPatch) (*workflow.Assessment, error)
	SubmitForReview(ctx context.Context, id, actorID string) (*workflow.Assessment, error)
	StartRevision(ctx context.Context, id, actorID string) (*workflow.Assessment, error)
	Archive(ctx context.Context, id, actorID, reason string) (*workflow.Assessment, error)
	Decide(ctx context.Context, id, approverID string, decision workflow.Decision, reason string) (*workflow.Assessment, error)
	History(ctx context.Context, id, actorID string) ([]*workflow.StateChange, error)

	AssignStakeholder(ctx context.Context, id, actorID, userID string, kind workflow.StakeholderKind) (*workflow.Stakeholder, error)
	ListStakeholders(ctx context.Context, id, actorID string) ([]*workflow.Stakeholder, error)

	SaveReviewDraft(ctx context.Context, id, reviewerID string, in workflow.ReviewInput) (*workflow.Review, error)
	SubmitReview(ctx context.Context, id, reviewerID string, in workflow.ReviewInput) (*ReviewOutcome, error)
	ListReviews(ctx context.Context, id, actorID string, version *int) ([]*workflow.Review, error)

	RestoreVersion(ctx context.Context, id string, version int, actorID string) (*workflow.Version, error)
	ListVersions(ctx context.Context, id, actorID string) ([]*workflow.Version, error)
	GetVersion(ctx context.Context, id string, version int, actorID string) (*workflow.Version, error)

	AddComment(ctx context.Context, id, actorID string, in workflow.CommentInput) (*workflow.Comment, error)
	ResolveComment(ctx context.Context, id, commentID, actorID string) (*workflow.Comment, error)
	ListComments(ctx context.Context, id, actorID string, axisID *string) ([]*workflow.Comment, error)

	// FlagOverdueReviews 标记超过评审时限的评估,返回本次标记数量
	FlagOverdueReviews(ctx context.Context) (int, error)
}

// ManagerOptions 引擎依赖
type ManagerOptions struct {
	Policy       *policy.Policy
	Roles        RoleResolver
	Locker       lock.Locker
	Sink         events.Sink
	StateMachine workflow.StateMachine
	Logger       *logrus.Logger
	Now          func() time.Time
}

// assessmentManager 基于数据库的评估流程引擎
type assessmentManager struct {
	db           *gorm.DB
	policy       *policy.Policy
	roles        RoleResolver
	locker       lock.Locker
	sink         events.Sink
	stateMachine workflow.StateMachine
	log          *logrus.Logger
	now          func() time.Time

	assessmentRepo  repository.AssessmentRepository
	versionRepo     repository.VersionRepository
	reviewRepo      repository.ReviewRepository
	commentRepo     repository.CommentRepository
	stakeholderRepo repository.StakeholderRepository
	historyRepo     repository.StateHistoryRepository
}

// NewAssessmentManager 创建评估流程引擎
func NewAssessmentManager(db *gorm.DB, opts ManagerOptions) (AssessmentManager, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	if opts.Policy == nil {
		return nil, errors.New("policy is required")
	}
	if opts.Roles == nil {
		return nil, errors.New("role resolver is required")
	}
	if opts.Locker == nil {
		opts.Locker = lock.NewLocalLocker()
	}
	if opts.Sink == nil {
		opts.Sink = events.NopSink{}
	}
	if opts.StateMachine == nil {
		opts.StateMachine = workflow.NewStateMachine()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &assessmentManager{
		db:              db,
		policy:          opts.Policy,
		roles:           opts.Roles,
		locker:          opts.Locker,
		sink:            opts.Sink,
		stateMachine:    opts.StateMachine,
		log:             opts.Logger,
		now:             func() time.Time { return opts.Now().UTC() },
		assessmentRepo:  repository.NewAssessmentRepository(db),
		versionRepo:     repository.NewVersionRepository(db),
		reviewRepo:      repository.NewReviewRepository(db),
		commentRepo:     repository.NewCommentRepository(db),
		stakeholderRepo: repository.NewStakeholderRepository(db),
		historyRepo:     repository.NewStateHistoryRepository(db),
	}, nil
}

// mutation 一次写操作
type mutation struct {
	op      string
	id      string
	actorID string
	// others 需要在事务外预先解析角色的其他用户
	others []string
	// system 为 true 时不解析角色
	system bool
	apply  func(s *txScope) error
}

// pendingEvent 事务内产生、提交后发布的事件
type pendingEvent struct {
	assessment *workflow.Assessment
	payload    events.Payload
}

// pendingChange 事务内产生的状态变更
type pendingChange struct {
	assessment *workflow.Assessment
	change     *workflow.StateChange
}

// txScope 单个事务内可见的仓储与变更
type txScope struct {
	m   *assessmentManager
	now time.Time

	assessments  repository.AssessmentRepository
	versions     repository.VersionRepository
	reviews      repository.ReviewRepository
	comments     repository.CommentRepository
	stakeholders repository.StakeholderRepository
	history      repository.StateHistoryRepository
	eventStore   repository.EventRepository

	current   *workflow.Assessment
	actorID   string
	actorRole policy.Role
	roles     map[string]policy.Role
	dirty     bool

	changes    []pendingChange
	events     []pendingEvent
	publishing []events.Envelope
	// afterCommit 提交成功后执行,用于记录指标
	afterCommit []func()
}

func (m *assessmentManager) newScope(tx *gorm.DB) *txScope {
	return &txScope{
		m:            m,
		now:          m.now(),
		assessments:  repository.NewAssessmentRepository(tx),
		versions:     repository.NewVersionRepository(tx),
		reviews:      repository.NewReviewRepository(tx),
		comments:     repository.NewCommentRepository(tx),
		stakeholders: repository.NewStakeholderRepository(tx),
		history:      repository.NewStateHistoryRepository(tx),
		eventStore:   repository.NewEventRepository(tx),
		roles:        map[string]policy.Role{},
	}
}

// can 判断操作人是否拥有权限
func (s *txScope) can(perm policy.Permission) bool {
	return s.m.policy.Can(s.actorRole, perm)
}

// require 缺少权限时返回 AuthorizationError
func (s *txScope) require(perm policy.Permission) error {
	if s.can(perm) {
		return nil
	}
	if s.actorRole == "" {
		return workflow.NewAuthorizationError(string(perm),
			"user %s is not a member of organization %s", s.actorID, s.current.OrganizationID)
	}
	return workflow.NewAuthorizationError(string(perm), "role %s lacks permission %s", s.actorRole, perm)
}

// requireOwnerOr 负责人或拥有 manage_any 权限
func (s *txScope) requireOwnerOr(perm policy.Permission) error {
	if err := s.require(perm); err != nil {
		return err
	}
	if s.current.IsOwner(s.actorID) || s.can(policy.PermAssessmentManageAny) {
		return nil
	}
	return workflow.NewAuthorizationError(string(policy.PermAssessmentManageAny),
		"only the owner or a project manager may do this on assessment %s", s.current.ID)
}

// transition 以操作人身份转换状态
func (s *txScope) transition(a *workflow.Assessment, to workflow.Status, reason string) error {
	return s.transitionAs(a, to, reason, s.actorID)
}

// transitionAs 校验并应用状态转换
func (s *txScope) transitionAs(a *workflow.Assessment, to workflow.Status, reason, operator string) error {
	change, err := s.m.stateMachine.Transition(a.Status, to, reason, operator)
	if err != nil {
		return err
	}
	change.Time = s.now
	a.Status = to
	s.changes = append(s.changes, pendingChange{assessment: a, change: change})
	s.emit(a, events.StatusChanged{
		From:     string(change.From),
		To:       string(change.To),
		Reason:   reason,
		Operator: operator,
		Version:  a.CurrentVersion,
	})
	from, next := string(change.From), string(change.To)
	s.afterCommit = append(s.afterCommit, func() { metrics.RecordTransition(from, next) })
	if a == s.current {
		s.dirty = true
	}
	return nil
}

func (s *txScope) emit(a *workflow.Assessment, payload events.Payload) {
	s.events = append(s.events, pendingEvent{assessment: a, payload: payload})
}

// save 按 row_version 做 CAS 写入
func (s *txScope) save(a *workflow.Assessment) error {
	expected := a.RowVersion
	a.UpdatedAt = s.now
	row, err := assessmentToModel(a)
	if err != nil {
		return err
	}
	ok, err := s.assessments.UpdateCAS(row, expected)
	if err != nil {
		return fmt.Errorf("failed to update assessment %s: %w", a.ID, err)
	}
	if !ok {
		return workflow.NewConflictError(
			fmt.Sprintf("assessment %s was modified concurrently", a.ID), nil)
	}
	a.RowVersion = row.RowVersion
	return nil
}

// flush 写入状态历史与发件箱事件
func (s *txScope) flush() ([]events.Envelope, error) {
	for _, pc := range s.changes {
		history := &model.StateHistoryModel{
			ID:           uuid.New().String(),
			AssessmentID: pc.assessment.ID,
			FromState:    string(pc.change.From),
			ToState:      string(pc.change.To),
			Version:      pc.assessment.CurrentVersion,
			Reason:       pc.change.Reason,
			Operator:     pc.change.Operator,
			CreatedAt:    pc.change.Time,
		}
		if err := s.history.Save(history); err != nil {
			return nil, fmt.Errorf("failed to save state history: %w", err)
		}
	}

	audiences := map[string][]string{}
	envelopes := make([]events.Envelope, 0, len(s.events))
	for _, pe := range s.events {
		a := pe.assessment
		audience, ok := audiences[a.ID]
		if !ok {
			var err error
			audience, err = s.audience(a)
			if err != nil {
				return nil, err
			}
			audiences[a.ID] = audience
		}
		env, err := events.New(a.ID, a.OrganizationID, audience, pe.payload, s.now)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(env)
		if err != nil {
			return nil, err
		}
		row := &model.EventModel{
			ID:           env.ID,
			AssessmentID: a.ID,
			Type:         string(env.Type),
			Data:         data,
			Status:       model.EventStatusPending,
			CreatedAt:    s.now,
			UpdatedAt:    s.now,
		}
		if err := s.eventStore.Save(row); err != nil {
			return nil, fmt.Errorf("failed to save event: %w", err)
		}
		envelopes = append(envelopes, env)
	}
	return envelopes, nil
}

// audience 负责人与全部参与人
func (s *txScope) audience(a *workflow.Assessment) ([]string, error) {
	stakeholders, err := s.stakeholders.ListByAssessment(a.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stakeholders: %w", err)
	}
	audience := make([]string, 0, len(stakeholders)+1)
	audience = append(audience, a.OwnerID)
	for _, sh := range stakeholders {
		audience = append(audience, sh.UserID)
	}
	return audience, nil
}

// mutate 在评估锁与数据库事务内执行写操作
//
// 角色在事务外解析;事务内以 FOR UPDATE 读取评估,apply 修改后按 row_version
// 做 CAS 写入,零行受影响返回 ConflictError 并回滚。
func (m *assessmentManager) mutate(ctx context.Context, mu mutation) (*workflow.Assessment, error) {
	unlock, err := m.locker.Lock(ctx, "assessment:"+mu.id)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, workflow.NewConflictError(fmt.Sprintf("assessment %s is busy", mu.id), err)
		}
		return nil, err
	}
	defer unlock()

	pre, err := m.load(ctx, mu.id)
	if err != nil {
		return nil, err
	}

	roles := map[string]policy.Role{}
	if !mu.system {
		for _, userID := range append([]string{mu.actorID}, mu.others...) {
			if _, done := roles[userID]; done || userID == "" {
				continue
			}
			role, err := m.roles.ResolveRole(ctx, userID, pre.OrganizationID)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve role of %s: %w", userID, err)
			}
			roles[userID] = role
		}
	}

	var scope *txScope
	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scope = m.newScope(tx)
		scope.actorID = mu.actorID
		scope.actorRole = roles[mu.actorID]
		scope.roles = roles

		row, err := scope.assessments.FindByIDForUpdate(mu.id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return workflow.NewNotFoundError("assessment", mu.id)
			}
			return fmt.Errorf("failed to load assessment: %w", err)
		}
		scope.current, err = assessmentFromModel(row)
		if err != nil {
			return err
		}

		if err := mu.apply(scope); err != nil {
			return err
		}
		if scope.dirty {
			if err := scope.save(scope.current); err != nil {
				return err
			}
		}

		envelopes, err := scope.flush()
		if err != nil {
			return err
		}
		scope.publishing = envelopes
		return nil
	})
	if err != nil {
		if workflow.KindOf(err) == workflow.KindConflict {
			metrics.RecordConflict(mu.op)
		}
		logger.FromContext(ctx).WithFields(logrus.Fields{
			"assessment_id": mu.id,
			"operation":     mu.op,
			"actor":         mu.actorID,
		}).WithError(err).Debug("assessment operation rejected")
		return nil, err
	}

	for _, fn := range scope.afterCommit {
		fn()
	}
	m.publish(ctx, scope.publishing)

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"assessment_id": mu.id,
		"operation":     mu.op,
		"actor":         mu.actorID,
		"status":        scope.current.Status,
		"version":       scope.current.CurrentVersion,
	}).Info("assessment operation applied")
	return scope.current, nil
}

// publish 提交后发布事件,失败只记录日志,发件箱中的记录会被补发
func (m *assessmentManager) publish(ctx context.Context, envelopes []events.Envelope) {
	for _, env := range envelopes {
		if err := m.sink.Publish(ctx, env); err != nil {
			m.log.WithFields(logrus.Fields{
				"event_id":      env.ID,
				"event_type":    env.Type,
				"assessment_id": env.AssessmentID,
			}).WithError(err).Warn("failed to publish event")
		}
	}
}

// load 事务外读取评估
func (m *assessmentManager) load(ctx context.Context, id string) (*workflow.Assessment, error) {
	row, err := repository.NewAssessmentRepository(m.db.WithContext(ctx)).FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, workflow.NewNotFoundError("assessment", id)
		}
		return nil, fmt.Errorf("failed to load assessment: %w", err)
	}
	return assessmentFromModel(row)
}

// viewable 读取评估并校验查看权限
func (m *assessmentManager) viewable(ctx context.Context, id, actorID string) (*workflow.Assessment, error) {
	a, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	role, err := m.roles.ResolveRole(ctx, actorID, a.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve role of %s: %w", actorID, err)
	}
	if !m.policy.Can(role, policy.PermAssessmentView) {
		return nil, workflow.NewAuthorizationError(string(policy.PermAssessmentView),
			"user %s may not view assessment %s", actorID, id)
	}
	return a, nil
}
