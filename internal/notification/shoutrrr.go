// Package notification pushes human-readable assessment notices to chat and
// mail services through shoutrrr URLs.
package notification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/events"
	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"
)

// sender 由 shoutrrr router 实现
type sender interface {
	Send(message string, params *types.Params) []error
}

// ShoutrrrNotifier 推送即时通知
//
// 只转发需要人工关注的事件:状态变更、参与人指定与评审超时。
type ShoutrrrNotifier struct {
	sender sender
}

// NewShoutrrrNotifier 按 URL 创建通知器
func NewShoutrrrNotifier(urls []string, timeout time.Duration) (*ShoutrrrNotifier, error) {
	if len(urls) == 0 {
		return nil, errors.New("at least one notification URL is required")
	}
	// 错误信息中不输出 URL,其中可能带有令牌
	for i, raw := range urls {
		if _, err := shoutrrr.CreateSender(raw); err != nil {
			return nil, fmt.Errorf("notification url %d (%s) is invalid", i+1, scheme(raw))
		}
	}
	router, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, errors.New("failed to create notification sender")
	}
	if timeout > 0 {
		router.Timeout = timeout
	}
	router.SetLogger(log.New(io.Discard, "", 0))
	return &ShoutrrrNotifier{sender: router}, nil
}

func scheme(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "unknown"
	}
	return u.Scheme
}

// Publish 实现 events.Sink
func (n *ShoutrrrNotifier) Publish(_ context.Context, env events.Envelope) error {
	title, message, ok := Render(env)
	if !ok {
		return nil
	}
	params := types.Params{}
	params.SetTitle(title)

	var failed []error
	for _, err := range n.sender.Send(message, &params) {
		if err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d notification service(s) failed: %w", len(failed), failed[0])
	}
	return nil
}

// Render 生成通知标题与正文,不需要通知的事件返回 false
func Render(env events.Envelope) (string, string, bool) {
	payload, err := env.Decode()
	if err != nil {
		return "", "", false
	}
	title := "Assessment " + env.AssessmentID

	switch p := payload.(type) {
	case events.StatusChanged:
		var b strings.Builder
		fmt.Fprintf(&b, "Status changed from %s to %s by %s", p.From, p.To, p.Operator)
		if p.Reason != "" {
			fmt.Fprintf(&b, ": %s", p.Reason)
		}
		return title, b.String(), true
	case events.StakeholderAssigned:
		return title, fmt.Sprintf("%s was assigned as %s by %s",
			p.UserID, strings.ToLower(p.Kind), p.AssignedBy), true
	case events.ReviewSLABreached:
		return title, fmt.Sprintf("Review of version %d is overdue since %s: %d of %d reviews received",
			p.Version, p.DueAt.UTC().Format(time.RFC3339), p.Received, p.Quorum), true
	}
	return "", "", false
}
