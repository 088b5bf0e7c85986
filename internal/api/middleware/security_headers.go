package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

/*
SecurityHeaders 安全响应头中间件
功能：本服务是纯 API 后端（前端独立部署），所有响应统一加固：
  - X-Content-Type-Options: 阻止浏览器对 JSON 响应做 MIME 嗅探
  - X-Frame-Options: 拒绝被嵌入 iframe
  - Referrer-Policy: 跨域跳转不泄漏完整 URL（OAuth 回调地址带敏感参数）
  - Permissions-Policy: 关闭用不到的浏览器能力

API 响应一律禁止缓存：令牌、会话和公会资格结论都是时效数据，
中间缓存命中会把已失效的准入结果继续发给客户端。
*/
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, private")
			c.Header("Pragma", "no-cache")
		}

		c.Next()
	}
}
