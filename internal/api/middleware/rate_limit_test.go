package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Zuntie/worklenz/internal/config"

	"github.com/gin-gonic/gin"
)

/* newLimiterRouter 创建挂了限流器的单路由引擎 */
func newLimiterRouter(t *testing.T, rl *LoginRateLimiter) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/login", rl.Middleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return r
}

/*
TestLoginRateLimiter 超过配置上限后返回 429 信封并带 Retry-After，
后续处理器不再执行
*/
func TestLoginRateLimiter(t *testing.T) {
	rl := NewLoginRateLimiter(&config.AuthConfig{
		LoginRateLimit:  3,
		LoginRateWindow: 15,
	})
	defer rl.Stop()
	r := newLimiterRouter(t, rl)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("第 %d 次请求应放行, 实际 %d", i+1, w.Code)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("超限请求应返回 429, 实际 %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("429 响应应带 Retry-After 头")
	}

	var resp struct {
		Success bool   `json:"success"`
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if resp.Success || resp.Code != http.StatusTooManyRequests {
		t.Errorf("响应信封不匹配: %+v", resp)
	}
}

/* TestLoginRateLimiterDefaults 配置为 0 时回退默认上限和窗口 */
func TestLoginRateLimiterDefaults(t *testing.T) {
	rl := NewLoginRateLimiter(&config.AuthConfig{})
	defer rl.Stop()

	if rl.maxAttempts != 10 {
		t.Errorf("默认上限应为 10, 实际 %d", rl.maxAttempts)
	}
	if rl.window != 15*time.Minute {
		t.Errorf("默认窗口应为 15 分钟, 实际 %v", rl.window)
	}
}
