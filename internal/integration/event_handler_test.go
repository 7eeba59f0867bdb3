package integration

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/database"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/events"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/model"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/repository"
	"github.com/jarcoal/httpmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const hookURL = "https://hooks.example.com/assessments"

func newOutboxEvent(t *testing.T, db *gorm.DB) events.Envelope {
	t.Helper()
	env, err := events.New("a-1", "org-1", []string{"alice"}, events.CommentResolved{CommentID: "c-1", ResolvedBy: "alice"}, time.Now())
	require.NoError(t, err)
	data, err := json.Marshal(env)
	require.NoError(t, err)
	now := time.Now().UTC()
	require.NoError(t, repository.NewEventRepository(db).Save(&model.EventModel{
		ID:           env.ID,
		AssessmentID: env.AssessmentID,
		Type:         string(env.Type),
		Data:         data,
		Status:       model.EventStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}))
	return env
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func eventStatus(t *testing.T, db *gorm.DB, id string) func() string {
	return func() string {
		row, err := repository.NewEventRepository(db).FindByID(id)
		if err != nil {
			return ""
		}
		return row.Status
	}
}

// TestEventHandler_WebhookRetry 首次失败后重试成功
func TestEventHandler_WebhookRetry(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	defer database.Close(db)

	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	var calls int32
	httpmock.RegisterResponder(http.MethodPost, hookURL, func(req *http.Request) (*http.Response, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return httpmock.NewStringResponse(http.StatusBadGateway, "down"), nil
		}
		if req.Header.Get("X-Event-Type") != string(events.TypeCommentResolved) {
			return httpmock.NewStringResponse(http.StatusBadRequest, "wrong type"), nil
		}
		return httpmock.NewStringResponse(http.StatusNoContent, ""), nil
	})

	h := NewEventHandler(db, EventHandlerOptions{
		WebhookURLs: []string{hookURL},
		Backoff:     time.Millisecond,
		HTTPClient:  client,
		Logger:      quietLogger(),
	})
	defer h.Stop()

	env := newOutboxEvent(t, db)
	require.NoError(t, h.Publish(context.Background(), env))

	status := eventStatus(t, db, env.ID)
	assert.Eventually(t, func() bool { return status() == model.EventStatusSuccess }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

// TestEventHandler_WebhookFailure 重试用尽后标记失败
func TestEventHandler_WebhookFailure(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	defer database.Close(db)

	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, hookURL, httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))

	h := NewEventHandler(db, EventHandlerOptions{
		WebhookURLs: []string{hookURL},
		MaxRetries:  2,
		Backoff:     time.Millisecond,
		HTTPClient:  client,
		Logger:      quietLogger(),
	})
	defer h.Stop()

	env := newOutboxEvent(t, db)
	require.NoError(t, h.Publish(context.Background(), env))

	status := eventStatus(t, db, env.ID)
	assert.Eventually(t, func() bool { return status() == model.EventStatusFailed }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

// TestEventHandler_Channels 推送到注册的通道,单个通道失败不影响其他通道
func TestEventHandler_Channels(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	defer database.Close(db)

	h := NewEventHandler(db, EventHandlerOptions{Logger: quietLogger()})
	defer h.Stop()

	received := make(chan events.Envelope, 1)
	h.AddChannel("broken", events.SinkFunc(func(context.Context, events.Envelope) error {
		return errors.New("unavailable")
	}))
	h.AddChannel("websocket", events.SinkFunc(func(_ context.Context, env events.Envelope) error {
		received <- env
		return nil
	}))

	env := newOutboxEvent(t, db)
	require.NoError(t, h.Publish(context.Background(), env))

	select {
	case got := <-received:
		assert.Equal(t, env.ID, got.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
	status := eventStatus(t, db, env.ID)
	assert.Eventually(t, func() bool { return status() == model.EventStatusSuccess }, 2*time.Second, 10*time.Millisecond)
}

// TestEventHandler_RedeliverPending 补发发件箱中的事件
func TestEventHandler_RedeliverPending(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	defer database.Close(db)

	h := NewEventHandler(db, EventHandlerOptions{Logger: quietLogger()})
	defer h.Stop()

	env := newOutboxEvent(t, db)
	queued, err := h.RedeliverPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, queued)

	status := eventStatus(t, db, env.ID)
	assert.Eventually(t, func() bool { return status() == model.EventStatusSuccess }, 2*time.Second, 10*time.Millisecond)
}

// TestEventHandler_PublishAfterStop 停止后拒绝入队
func TestEventHandler_PublishAfterStop(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	defer database.Close(db)

	h := NewEventHandler(db, EventHandlerOptions{Logger: quietLogger()})
	h.Stop()
	h.Stop()

	env, err := events.New("a-1", "org-1", nil, events.CommentResolved{CommentID: "c-1", ResolvedBy: "alice"}, time.Now())
	require.NoError(t, err)
	assert.Error(t, h.Publish(context.Background(), env))
}
