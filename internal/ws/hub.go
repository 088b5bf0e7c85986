package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/Zuntie/worklenz/internal/pkg/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	/* writeWait 单条消息写超时 */
	writeWait = 10 * time.Second
	/* pongWait 心跳超时，超过未收到 pong 即断开 */
	pongWait = 60 * time.Second
	/* pingPeriod 心跳间隔，必须小于 pongWait */
	pingPeriod = 50 * time.Second
	/* maxMessageSize 客户端上行消息大小上限 */
	maxMessageSize = 4096
	/* sendBufferSize 每连接下行缓冲，写满即视为慢消费者断开 */
	sendBufferSize = 64
)

/*
Event 下发给浏览器客户端的实时事件
*/
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

/* 事件类型 */
const (
	EventTaskCreated    = "task.created"
	EventTaskUpdated    = "task.updated"
	EventTaskDeleted    = "task.deleted"
	EventProjectUpdated = "project.updated"
	EventSessionKicked  = "session.kicked"
)

/*
Client 单个浏览器 WebSocket 连接
功能：一条连接绑定一个已认证会话。同一会话可以有多条连接
（多标签页），会话失效时全部断开。
*/
type Client struct {
	SessionID string
	UserID    string

	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
}

/*
Hub 浏览器连接注册中心
功能：维护 会话 → 连接 和 用户 → 连接 两个索引，
支持按用户集合广播业务事件、按会话踢出连接。
并发安全：所有索引由互斥锁保护，可从任意 goroutine 调用。
*/
type Hub struct {
	mu        sync.RWMutex
	clients   map[*Client]struct{}
	bySession map[string]map[*Client]struct{}
	byUser    map[string]map[*Client]struct{}

	maxConnections int
}

/*
NewHub 创建连接注册中心
maxConnections 为 0 表示不限制
*/
func NewHub(maxConnections int) *Hub {
	return &Hub{
		clients:        make(map[*Client]struct{}),
		bySession:      make(map[string]map[*Client]struct{}),
		byUser:         make(map[string]map[*Client]struct{}),
		maxConnections: maxConnections,
	}
}

/* IsAtCapacity 连接数是否已达上限 */
func (h *Hub) IsAtCapacity() bool {
	if h.maxConnections <= 0 {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients) >= h.maxConnections
}

/* ConnectionCount 当前连接数 */
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

/* register 登记连接 */
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = struct{}{}
	if h.bySession[c.SessionID] == nil {
		h.bySession[c.SessionID] = make(map[*Client]struct{})
	}
	h.bySession[c.SessionID][c] = struct{}{}
	if h.byUser[c.UserID] == nil {
		h.byUser[c.UserID] = make(map[*Client]struct{})
	}
	h.byUser[c.UserID][c] = struct{}{}

	logger.Debug("WebSocket 连接已登记",
		zap.String("sessionID", c.SessionID),
		zap.String("userID", c.UserID),
		zap.Int("total", len(h.clients)))
}

/* unregister 注销连接，重复调用安全 */
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)

	if set := h.bySession[c.SessionID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.bySession, c.SessionID)
		}
	}
	if set := h.byUser[c.UserID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.byUser, c.UserID)
		}
	}
}

/*
KickSession 断开指定会话的全部连接
功能：会话被删除（清扫、登出、管理员强制下线）后调用，
先推送 session.kicked 事件告知原因，随后关闭底层连接。
对不在线的会话调用是空操作。
*/
func (h *Hub) KickSession(sessionID string, reason string) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.bySession[sessionID]))
	for c := range h.bySession[sessionID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	data, _ := json.Marshal(Event{
		Type:    EventSessionKicked,
		Payload: map[string]string{"reason": reason},
	})

	for _, c := range targets {
		c.trySend(data)
		c.close()
	}

	logger.Info("已踢出会话的在线连接",
		zap.String("sessionID", sessionID),
		zap.String("reason", reason),
		zap.Int("connections", len(targets)))
}

/*
BroadcastToUsers 向一组用户的全部在线连接广播事件
功能：业务 handler 在任务/项目变更后调用，
接收方是所在团队的成员集合。慢消费者直接丢弃本条消息。
*/
func (h *Hub) BroadcastToUsers(userIDs []string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("序列化广播事件失败", zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0)
	for _, uid := range userIDs {
		for c := range h.byUser[uid] {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.trySend(data)
	}
}

/* trySend 非阻塞投递，缓冲满则丢弃 */
func (c *Client) trySend(data []byte) {
	select {
	case c.send <- data:
	default:
	}
}

/* close 关闭下行通道，触发 writePump 退出并关闭底层连接 */
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

/*
readPump 上行读循环
功能：浏览器客户端只发心跳，不处理业务上行；
读错误（含对端关闭）即注销连接
*/
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("WebSocket 读取异常",
					zap.String("sessionID", c.SessionID),
					zap.Error(err))
			}
			return
		}
	}
}

/*
writePump 下行写循环
功能：串行写出 send 通道中的消息并定期发送 ping，
send 关闭（KickSession 或 readPump 退出）时发送 Close 帧后断开
*/
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
