package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/events"
)

// Hub 管理所有 WebSocket 连接,按用户推送评估事件
type Hub struct {
	clients map[*Client]struct{}
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

// NewHub 创建新的 Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run 处理注册与注销,ctx 结束后关闭全部连接
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.remove(client)

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Register 注册客户端,Hub 已停止时返回 false
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)
	}
}

// SendToUser 向用户的全部连接发送消息,发送队列已满的连接被断开
func (h *Hub) SendToUser(userID string, message []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	sent := 0
	for client := range h.clients {
		if client.UserID != userID {
			continue
		}
		select {
		case client.Send <- message:
			sent++
		default:
			delete(h.clients, client)
			close(client.Send)
		}
	}
	return sent
}

// Publish 实现 events.Sink,推送给事件受众中在线的用户
func (h *Hub) Publish(_ context.Context, env events.Envelope) error {
	if len(env.Audience) == 0 {
		return nil
	}
	message, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	for _, userID := range env.Audience {
		h.SendToUser(userID, message)
	}
	return nil
}

// HasClient 检查客户端是否存在
func (h *Hub) HasClient(clientID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.ID == clientID {
			return true
		}
	}
	return false
}

// ClientCount 获取客户端数量
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
