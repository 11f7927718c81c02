package ws

import (
	"sync"

	"github.com/asmorodws/chatapp-nextjs/internal/chat"
	"github.com/asmorodws/chatapp-nextjs/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Gateway 维护所有在线连接，按 connID 投递已编码的帧。
type Gateway struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewGateway() *Gateway { return &Gateway{clients: make(map[string]*Client)} }

func (g *Gateway) register(c *Client) {
	g.mu.Lock()
	g.clients[c.id] = c
	g.mu.Unlock()
	metrics.WsConnections.Inc()
}

// unregister 移除连接并关闭其发送队列，重复调用是安全的。
func (g *Gateway) unregister(c *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cur, ok := g.clients[c.id]; !ok || cur != c {
		return
	}
	delete(g.clients, c.id)
	close(c.send)
	metrics.WsConnections.Dec()
}

// Deliver 非阻塞写入发送队列。队列已满的慢客户端会被踢掉，不影响其他连接。
func (g *Gateway) Deliver(connID string, frame []byte) error {
	g.mu.RLock()
	c, ok := g.clients[connID]
	if !ok {
		g.mu.RUnlock()
		return chat.ErrConnGone
	}
	select {
	case c.send <- frame:
		g.mu.RUnlock()
		return nil
	default:
	}
	g.mu.RUnlock()

	log.Warn().Str("conn_id", connID).Str("user_id", c.userID).Msg("send buffer full, dropping client")
	g.unregister(c)
	return errSlowClient
}

// Count 返回当前在线连接数。
func (g *Gateway) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.clients)
}

// Close 关闭全部连接的发送队列，writePump 随后发送 close 帧，用于优雅停服。
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, c := range g.clients {
		delete(g.clients, id)
		close(c.send)
		metrics.WsConnections.Dec()
	}
}
