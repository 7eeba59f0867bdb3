package workflow

import (
	"fmt"
	"time"
)

// Status 评估状态
type Status string

const (
	StatusDraft            Status = "DRAFT"
	StatusInReview         Status = "IN_REVIEW"
	StatusAwaitingApproval Status = "AWAITING_APPROVAL"
	StatusApproved         Status = "APPROVED"
	StatusRejected         Status = "REJECTED"
	StatusArchived         Status = "ARCHIVED"
)

// AllStatuses 全部状态,按流程顺序
var AllStatuses = []Status{
	StatusDraft, StatusInReview, StatusAwaitingApproval,
	StatusApproved, StatusRejected, StatusArchived,
}

// Valid 判断状态取值是否合法
func (s Status) Valid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Editable 判断该状态下是否允许修改维度数据
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusRejected
}

// Terminal 判断是否为终止状态
func (s Status) Terminal() bool {
	return s == StatusArchived
}

// transitions 合法状态转换表
var transitions = map[Status][]Status{
	StatusDraft:            {StatusInReview},
	StatusRejected:         {StatusInReview, StatusDraft},
	StatusInReview:         {StatusAwaitingApproval},
	StatusAwaitingApproval: {StatusApproved, StatusRejected},
	StatusApproved:         {StatusArchived},
	StatusArchived:         {},
}

// StateChange 状态变更记录
type StateChange struct {
	From     Status    `json:"from"`
	To       Status    `json:"to"`
	Reason   string    `json:"reason,omitempty"`
	Operator string    `json:"operator"`
	Time     time.Time `json:"time"`
}

// StateMachine 评估状态机
type StateMachine interface {
	// CanTransition 判断是否允许从 from 转换到 to
	CanTransition(from, to Status) bool
	// Transition 校验并返回状态变更记录
	Transition(from, to Status, reason, operator string) (*StateChange, error)
	// Allowed 返回从 from 出发允许的目标状态
	Allowed(from Status) []Status
}

type stateMachine struct {
	table map[Status][]Status
	now   func() time.Time
}

// NewStateMachine 创建状态机
func NewStateMachine() StateMachine {
	return &stateMachine{table: transitions, now: time.Now}
}

func (sm *stateMachine) CanTransition(from, to Status) bool {
	for _, next := range sm.table[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (sm *stateMachine) Transition(from, to Status, reason, operator string) (*StateChange, error) {
	if !sm.CanTransition(from, to) {
		return nil, &Error{
			Kind:     KindState,
			Message:  fmt.Sprintf("cannot move assessment from %s to %s", from, to),
			Current:  from,
			Required: sourcesOf(sm.table, to),
		}
	}
	return &StateChange{
		From:     from,
		To:       to,
		Reason:   reason,
		Operator: operator,
		Time:     sm.now().UTC(),
	}, nil
}

func (sm *stateMachine) Allowed(from Status) []Status {
	out := make([]Status, len(sm.table[from]))
	copy(out, sm.table[from])
	return out
}

// sourcesOf 返回可以转换到 to 的状态
func sourcesOf(table map[Status][]Status, to Status) []Status {
	var sources []Status
	for _, from := range AllStatuses {
		for _, next := range table[from] {
			if next == to {
				sources = append(sources, from)
			}
		}
	}
	return sources
}
