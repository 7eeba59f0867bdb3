package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/events"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/metrics"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/model"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// EventHandlerOptions 事件分发配置
type EventHandlerOptions struct {
	WebhookURLs []string
	Workers     int
	MaxRetries  int
	Backoff     time.Duration
	QueueSize   int
	HTTPClient  *http.Client
	Logger      *logrus.Logger
}

// EventHandler 事件分发器
//
// 事件在业务事务内写入发件箱,提交后经 Publish 入队,由 worker 推送到
// 各下游通道与 Webhook,并回写发件箱状态。
type EventHandler struct {
	eventRepo  repository.EventRepository
	webhooks   []string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	log        *logrus.Logger

	mu       sync.RWMutex
	channels []channel

	queue chan events.Envelope
	stop  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

type channel struct {
	name string
	sink events.Sink
}

// NewEventHandler 创建事件分发器并启动 worker
func NewEventHandler(db *gorm.DB, opts EventHandlerOptions) *EventHandler {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1000
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	h := &EventHandler{
		eventRepo:  repository.NewEventRepository(db),
		webhooks:   opts.WebhookURLs,
		httpClient: opts.HTTPClient,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		log:        opts.Logger,
		queue:      make(chan events.Envelope, opts.QueueSize),
		stop:       make(chan struct{}),
	}

	for i := 0; i < opts.Workers; i++ {
		h.wg.Add(1)
		go h.worker()
	}
	return h
}

// AddChannel 注册下游通道,例如 websocket 与即时通知
func (h *EventHandler) AddChannel(name string, sink events.Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.channels = append(h.channels, channel{name: name, sink: sink})
}

// Publish 入队,队列满时丢弃,发件箱记录保持 pending 等待补发
func (h *EventHandler) Publish(_ context.Context, env events.Envelope) error {
	select {
	case <-h.stop:
		return fmt.Errorf("event handler stopped")
	default:
	}

	select {
	case h.queue <- env:
		return nil
	default:
		h.log.WithFields(logrus.Fields{
			"event_id":   env.ID,
			"event_type": env.Type,
		}).Warn("event queue full, event left pending in outbox")
		return nil
	}
}

// RedeliverPending 重新投递发件箱中仍为 pending 的事件
func (h *EventHandler) RedeliverPending(ctx context.Context, limit int) (int, error) {
	rows, err := h.eventRepo.FindPending(limit)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending events: %w", err)
	}
	queued := 0
	for _, row := range rows {
		var env events.Envelope
		if err := json.Unmarshal(row.Data, &env); err != nil {
			h.log.WithField("event_id", row.ID).WithError(err).Error("malformed event in outbox")
			_ = h.eventRepo.UpdateStatus(row.ID, model.EventStatusFailed, row.RetryCount)
			continue
		}
		if err := h.Publish(ctx, env); err != nil {
			return queued, err
		}
		queued++
	}
	return queued, nil
}

func (h *EventHandler) worker() {
	defer h.wg.Done()
	for {
		select {
		case env := <-h.queue:
			h.deliver(env)
		case <-h.stop:
			return
		}
	}
}

// deliver 推送到各通道与 Webhook
func (h *EventHandler) deliver(env events.Envelope) {
	h.mu.RLock()
	channels := append([]channel(nil), h.channels...)
	h.mu.RUnlock()

	ctx := context.Background()
	for _, ch := range channels {
		if err := ch.sink.Publish(ctx, env); err != nil {
			metrics.RecordEventDelivery(ch.name, "failed")
			h.log.WithFields(logrus.Fields{
				"event_id": env.ID,
				"channel":  ch.name,
			}).WithError(err).Warn("failed to deliver event")
			continue
		}
		metrics.RecordEventDelivery(ch.name, "success")
	}

	if len(h.webhooks) == 0 {
		h.markStatus(env.ID, model.EventStatusSuccess, 0)
		return
	}

	body, err := json.Marshal(env)
	if err != nil {
		h.log.WithField("event_id", env.ID).WithError(err).Error("failed to marshal event")
		h.markStatus(env.ID, model.EventStatusFailed, 0)
		return
	}

	pending := append([]string(nil), h.webhooks...)
	backoff := h.backoff
	for attempt := 0; attempt < h.maxRetries; attempt++ {
		var failed []string
		for _, url := range pending {
			if err := h.sendWebhookRequest(url, env, body); err != nil {
				failed = append(failed, url)
				h.log.WithFields(logrus.Fields{
					"event_id": env.ID,
					"webhook":  url,
					"attempt":  attempt + 1,
				}).WithError(err).Warn("webhook delivery failed")
			}
		}
		if len(failed) == 0 {
			metrics.RecordEventDelivery("webhook", "success")
			h.markStatus(env.ID, model.EventStatusSuccess, attempt)
			return
		}
		pending = failed

		if attempt < h.maxRetries-1 {
			select {
			case <-time.After(backoff):
			case <-h.stop:
				h.markStatus(env.ID, model.EventStatusPending, attempt+1)
				return
			}
			backoff *= 2
		}
	}

	metrics.RecordEventDelivery("webhook", "failed")
	h.markStatus(env.ID, model.EventStatusFailed, h.maxRetries)
}

func (h *EventHandler) markStatus(id, status string, retries int) {
	if err := h.eventRepo.UpdateStatus(id, status, retries); err != nil {
		h.log.WithField("event_id", id).WithError(err).Warn("failed to update event status")
	}
}

// sendWebhookRequest 发送 Webhook 请求
func (h *EventHandler) sendWebhookRequest(url string, env events.Envelope, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-ID", env.ID)
	req.Header.Set("X-Event-Type", string(env.Type))

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status code: %d", resp.StatusCode)
	}
	return nil
}

// Stop 停止 worker 并等待退出
func (h *EventHandler) Stop() {
	h.once.Do(func() { close(h.stop) })
	h.wg.Wait()
}
