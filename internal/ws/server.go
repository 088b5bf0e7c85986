package ws

import (
	"net/http"

	"github.com/Zuntie/worklenz/internal/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		/*
			浏览器连接已由 CORS 中间件验证 Origin，此处统一放行。
			如需收紧，可从配置文件读取允许的 Origin 列表。
		*/
		return true
	},
}

// Server WebSocket 服务器
type Server struct {
	hub *Hub
}

/*
NewServer 创建 WebSocket 服务器
功能：初始化连接注册中心（含最大连接数限制）。
maxConnections 为 0 表示不限制。
*/
func NewServer(maxConnections int) *Server {
	return &Server{
		hub: NewHub(maxConnections),
	}
}

// Start 启动服务器
func (s *Server) Start() {
	logger.Info("✓ WebSocket 服务器已启动")
}

/*
HandleWebSocket WebSocket 升级入口
功能：必须挂在 JWT 认证中间件之后，从 gin 上下文取已验证的
会话 ID 和用户 ID，升级后登记到 Hub 并启动读写循环
*/
func (s *Server) HandleWebSocket(c *gin.Context) {
	sessionID := c.GetString("session_id")
	userID := c.GetString("user_id")
	if sessionID == "" || userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未认证"})
		return
	}

	/* 检查连接数限制，防止资源耗尽 */
	if s.hub.IsAtCapacity() {
		logger.Warn("WebSocket 连接数已达上限，拒绝新连接",
			zap.Int("current", s.hub.ConnectionCount()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "服务器连接数已满"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("WebSocket 升级失败", zap.Error(err))
		return
	}

	client := &Client{
		SessionID: sessionID,
		UserID:    userID,
		hub:       s.hub,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
	}
	s.hub.register(client)

	go client.writePump()
	go client.readPump()
}

// GetHub 获取连接注册中心（用于外部调用）
func (s *Server) GetHub() *Hub {
	return s.hub
}

// GetStats 获取统计信息
func (s *Server) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"online_connections": s.hub.ConnectionCount(),
	}
}
