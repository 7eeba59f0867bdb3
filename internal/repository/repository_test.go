package repository

import (
	"testing"
	"time"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/database"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func newAssessmentModel(id, org, status string) *model.AssessmentModel {
	now := time.Now().UTC()
	return &model.AssessmentModel{
		ID: id, OrganizationID: org, OwnerID: "owner", Status: status,
		Axes: []byte("{}"), CreatedAt: now, UpdatedAt: now,
	}
}

// TestAssessmentRepository_UpdateCAS 测试乐观锁更新
func TestAssessmentRepository_UpdateCAS(t *testing.T) {
	repo := NewAssessmentRepository(setupTestDB(t))
	m := newAssessmentModel("a-1", "org-1", "DRAFT")
	require.NoError(t, repo.Create(m))

	m.Status = "IN_REVIEW"
	ok, err := repo.UpdateCAS(m, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), m.RowVersion)

	// 过期的 row_version 不会写入
	stale := newAssessmentModel("a-1", "org-1", "APPROVED")
	ok, err = repo.UpdateCAS(stale, 0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(0), stale.RowVersion)

	got, err := repo.FindByID("a-1")
	require.NoError(t, err)
	assert.Equal(t, "IN_REVIEW", got.Status)
	assert.Equal(t, int64(1), got.RowVersion)
}

// TestAssessmentRepository_FindByFilter 测试分页过滤
func TestAssessmentRepository_FindByFilter(t *testing.T) {
	repo := NewAssessmentRepository(setupTestDB(t))
	require.NoError(t, repo.Create(newAssessmentModel("a-1", "org-1", "DRAFT")))
	require.NoError(t, repo.Create(newAssessmentModel("a-2", "org-1", "APPROVED")))
	require.NoError(t, repo.Create(newAssessmentModel("a-3", "org-2", "DRAFT")))

	org := "org-1"
	items, total, err := repo.FindByFilter(&AssessmentFilter{OrganizationID: &org, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, items, 1)

	status := "DRAFT"
	items, total, err = repo.FindByFilter(&AssessmentFilter{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, items, 2)

	approved, err := repo.FindApprovedInOrganization("org-1", "a-9")
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, "a-2", approved[0].ID)

	counts, err := repo.CountByStatus()
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts["DRAFT"])
	assert.Equal(t, int64(1), counts["APPROVED"])
}

// TestAssessmentRepository_ReviewOverdue 测试评审超时查询
func TestAssessmentRepository_ReviewOverdue(t *testing.T) {
	repo := NewAssessmentRepository(setupTestDB(t))
	started := time.Now().UTC().Add(-20 * 24 * time.Hour)
	m := newAssessmentModel("a-1", "org-1", "IN_REVIEW")
	m.SubmittedAt = &started
	require.NoError(t, repo.Create(m))

	fresh := time.Now().UTC()
	m2 := newAssessmentModel("a-2", "org-1", "IN_REVIEW")
	m2.SubmittedAt = &fresh
	require.NoError(t, repo.Create(m2))

	overdue, err := repo.FindReviewOverdue(time.Now().UTC().Add(-14 * 24 * time.Hour))
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "a-1", overdue[0].ID)

	warned := time.Now().UTC()
	overdue[0].SLAWarnedAt = &warned
	ok, err := repo.UpdateCAS(overdue[0], overdue[0].RowVersion)
	require.NoError(t, err)
	assert.True(t, ok)

	// 已提醒的不再返回
	overdue, err = repo.FindReviewOverdue(time.Now().UTC().Add(-14 * 24 * time.Hour))
	require.NoError(t, err)
	assert.Empty(t, overdue)
}

// TestVersionRepository_MaxAndList 测试版本号查询
func TestVersionRepository_MaxAndList(t *testing.T) {
	repo := NewVersionRepository(setupTestDB(t))

	max, err := repo.MaxVersion("a-1")
	require.NoError(t, err)
	assert.Equal(t, 0, max)

	for _, n := range []int{2, 1, 3} {
		require.NoError(t, repo.Create(&model.AssessmentVersionModel{
			ID: "v-" + string(rune('0'+n)), AssessmentID: "a-1", Version: n,
			SnapshotData: []byte("{}"), CreatedBy: "u", CreatedAt: time.Now(),
		}))
	}

	max, err = repo.MaxVersion("a-1")
	require.NoError(t, err)
	assert.Equal(t, 3, max)

	versions, err := repo.ListByAssessment("a-1")
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{versions[0].Version, versions[1].Version, versions[2].Version})

	_, err = repo.FindByNumber("a-1", 9)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

// TestReviewRepository_CountSubmittedReviewers 测试去重计数
func TestReviewRepository_CountSubmittedReviewers(t *testing.T) {
	repo := NewReviewRepository(setupTestDB(t))
	now := time.Now().UTC()
	save := func(id, reviewer string, version int, submitted bool) {
		r := &model.ReviewModel{
			ID: id, AssessmentID: "a-1", Version: version, ReviewerID: reviewer,
			Recommendation: "APPROVE", CreatedAt: now, UpdatedAt: now,
		}
		if submitted {
			r.SubmittedAt = &now
		}
		require.NoError(t, repo.Save(r))
	}
	save("r-1", "alice", 1, true)
	save("r-2", "alice", 2, true)
	save("r-3", "bob", 2, true)
	save("r-4", "carol", 2, false)

	count, err := repo.CountSubmittedReviewers("a-1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	open, err := repo.FindOpen("a-1", "carol")
	require.NoError(t, err)
	assert.Equal(t, "r-4", open.ID)

	_, err = repo.FindSubmitted("a-1", 1, "bob")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	v := 2
	reviews, err := repo.ListByAssessment("a-1", &v)
	require.NoError(t, err)
	assert.Len(t, reviews, 3)

	deleted, err := repo.DeleteOpen("a-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	_, err = repo.FindOpen("a-1", "carol")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	reviews, err = repo.ListByAssessment("a-1", nil)
	require.NoError(t, err)
	assert.Len(t, reviews, 3)
}

// TestCommentRepository_MarkResolved 测试只解决单条评论
func TestCommentRepository_MarkResolved(t *testing.T) {
	repo := NewCommentRepository(setupTestDB(t))
	now := time.Now().UTC()
	parentID := "c-1"
	require.NoError(t, repo.Create(&model.CommentModel{ID: "c-1", AssessmentID: "a-1", AxisID: "culture", UserID: "u", Body: "root", Depth: 0, CreatedAt: now}))
	require.NoError(t, repo.Create(&model.CommentModel{ID: "c-2", AssessmentID: "a-1", AxisID: "culture", UserID: "u", Body: "reply", ParentCommentID: &parentID, Depth: 1, CreatedAt: now.Add(time.Second)}))

	require.NoError(t, repo.MarkResolved("c-1", "pm", now))

	parent, err := repo.FindByID("c-1")
	require.NoError(t, err)
	assert.True(t, parent.IsResolved)
	require.NotNil(t, parent.ResolvedBy)
	assert.Equal(t, "pm", *parent.ResolvedBy)

	child, err := repo.FindByID("c-2")
	require.NoError(t, err)
	assert.False(t, child.IsResolved)

	axis := "culture"
	comments, err := repo.ListByAssessment("a-1", &axis)
	require.NoError(t, err)
	assert.Len(t, comments, 2)
}

// TestStakeholderAndMembership 测试参与人与成员角色
func TestStakeholderAndMembership(t *testing.T) {
	db := setupTestDB(t)
	stakeholders := NewStakeholderRepository(db)
	members := NewMembershipRepository(db)
	now := time.Now().UTC()

	s := &model.StakeholderModel{AssessmentID: "a-1", UserID: "bob", Kind: "REVIEWER", AssignedBy: "pm", CreatedAt: now}
	require.NoError(t, stakeholders.Save(s))
	require.NoError(t, stakeholders.Save(s))

	ok, err := stakeholders.Exists("a-1", "bob", "REVIEWER")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = stakeholders.Exists("a-1", "bob", "APPROVER")
	require.NoError(t, err)
	assert.False(t, ok)

	list, err := stakeholders.ListByAssessment("a-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, members.Save(&model.MembershipModel{OrganizationID: "org-1", UserID: "bob", Role: "REVIEWER", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, members.Save(&model.MembershipModel{OrganizationID: "org-1", UserID: "bob", Role: "CONSULTANT", CreatedAt: now, UpdatedAt: now}))
	role, err := members.FindRole("org-1", "bob")
	require.NoError(t, err)
	assert.Equal(t, "CONSULTANT", role)

	_, err = members.FindRole("org-2", "bob")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

// TestEventRepository_Pending 测试待推送事件
func TestEventRepository_Pending(t *testing.T) {
	repo := NewEventRepository(setupTestDB(t))
	now := time.Now().UTC()
	require.NoError(t, repo.Save(&model.EventModel{ID: "e-1", AssessmentID: "a-1", Type: "t", Data: []byte("{}"), Status: model.EventStatusPending, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, repo.Save(&model.EventModel{ID: "e-2", AssessmentID: "a-1", Type: "t", Data: []byte("{}"), Status: model.EventStatusPending, CreatedAt: now, UpdatedAt: now}))

	require.NoError(t, repo.UpdateStatus("e-1", model.EventStatusSuccess, 1))

	pending, err := repo.FindPending(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "e-2", pending[0].ID)

	e1, err := repo.FindByID("e-1")
	require.NoError(t, err)
	assert.Equal(t, 1, e1.RetryCount)
}
