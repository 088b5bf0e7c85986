package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Zuntie/worklenz/internal/api/response"
	"github.com/Zuntie/worklenz/internal/config"

	"github.com/gin-gonic/gin"
)

/*
LoginRateLimiter 登录入口限流器
功能：按客户端 IP 做滑动窗口计数，密码登录和 Discord 回调共用，
防止对凭据接口的暴力尝试。窗口内超过上限返回 429 并带 Retry-After。
后台每 5 分钟清理一次窗口外的记录。
并发安全：互斥锁保护计数表。
*/
type LoginRateLimiter struct {
	attempts    map[string][]time.Time /* IP → 窗口内的请求时间戳 */
	mu          sync.Mutex
	maxAttempts int
	window      time.Duration
	stopChan    chan struct{}
}

/*
NewLoginRateLimiter 按认证配置创建登录限流器
login_rate_limit / login_rate_window 为 0 时取默认值（10 次 / 15 分钟）
*/
func NewLoginRateLimiter(authCfg *config.AuthConfig) *LoginRateLimiter {
	maxAttempts := authCfg.LoginRateLimit
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	window := time.Duration(authCfg.LoginRateWindow) * time.Minute
	if window <= 0 {
		window = 15 * time.Minute
	}

	rl := &LoginRateLimiter{
		attempts:    make(map[string][]time.Time),
		maxAttempts: maxAttempts,
		window:      window,
		stopChan:    make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

/* Stop 停止后台清理 goroutine */
func (rl *LoginRateLimiter) Stop() {
	close(rl.stopChan)
}

/*
Middleware 返回 Gin 中间件
功能：窗口内计数超限时以统一响应信封返回 429
*/
func (rl *LoginRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		rl.mu.Lock()
		now := time.Now()
		cutoff := now.Add(-rl.window)

		/* 丢弃窗口外的过期记录 */
		attempts := rl.attempts[ip]
		valid := attempts[:0]
		for _, t := range attempts {
			if t.After(cutoff) {
				valid = append(valid, t)
			}
		}

		if len(valid) >= rl.maxAttempts {
			rl.attempts[ip] = valid
			/* 最早一次记录滑出窗口后即可重试 */
			retryAfter := time.Until(valid[0].Add(rl.window))
			rl.mu.Unlock()

			c.Header("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())+1))
			response.GinError(c, http.StatusTooManyRequests, "登录尝试过于频繁，请稍后再试")
			c.Abort()
			return
		}

		rl.attempts[ip] = append(valid, now)
		rl.mu.Unlock()

		c.Next()
	}
}

/* cleanup 定期清理窗口外的限流记录，防止 IP 表无限增长 */
func (rl *LoginRateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			cutoff := time.Now().Add(-rl.window)
			for ip, attempts := range rl.attempts {
				valid := attempts[:0]
				for _, t := range attempts {
					if t.After(cutoff) {
						valid = append(valid, t)
					}
				}
				if len(valid) == 0 {
					delete(rl.attempts, ip)
				} else {
					rl.attempts[ip] = valid
				}
			}
			rl.mu.Unlock()
		case <-rl.stopChan:
			return
		}
	}
}
