package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Zuntie/worklenz/internal/api/response"
	"github.com/Zuntie/worklenz/internal/db/dao"
)

/*
GenerateJWT 生成 JWT 令牌
功能：使用 HMAC-SHA256 签名算法生成包含用户信息的 JWT 令牌。
jti 携带服务端会话行 ID：令牌仅在对应会话行仍然存在时有效，
删除会话行（登出、清扫、管理员强制下线）即硬性失效该令牌。
*/
func GenerateJWT(userID, username, role, sessionID, jwtSecret string, expiresInHours int) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id":  userID,
		"username": username,
		"role":     role,
		"jti":      sessionID,
		"iat":      now.Unix(),
		"exp":      now.Add(time.Duration(expiresInHours) * time.Hour).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		return "", fmt.Errorf("签名 JWT 令牌失败: %w", err)
	}
	return signed, nil
}

/*
JWTAuth 返回 Gin JWT 认证中间件
功能：从 Authorization 头提取 Bearer 令牌，使用 HMAC-SHA256 验证签名，
再核对 jti 指向的会话行仍然存在且未过期——签名有效但会话已被删除的
令牌一律拒绝。通过后将 claims 注入 Gin 上下文供后续 handler 使用。
*/
func JWTAuth(jwtSecret string, d *dao.DAO) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.GinUnauthorized(c, "缺少认证令牌")
			c.Abort()
			return
		}

		/* 提取 Bearer 令牌 */
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			response.GinUnauthorized(c, "认证头格式无效，需 Bearer <token>")
			c.Abort()
			return
		}

		/* 解析并验证 JWT 签名 */
		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("不支持的签名方法: %v", t.Header["alg"])
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			response.GinUnauthorized(c, "无效或已过期的令牌")
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			response.GinUnauthorized(c, "令牌 claims 解析失败")
			c.Abort()
			return
		}

		sessionID, _ := claims["jti"].(string)
		if sessionID == "" {
			response.GinUnauthorized(c, "令牌缺少会话标识")
			c.Abort()
			return
		}

		/* 会话行必须仍然存在：被删除的会话令牌立即失效 */
		session, err := d.GetSession(sessionID)
		if err != nil {
			response.GinInternalError(c, "会话查询失败", err)
			c.Abort()
			return
		}
		if session == nil || time.Now().After(session.ExpiresAt) {
			response.GinUnauthorized(c, "会话已失效，请重新登录")
			c.Abort()
			return
		}

		c.Set("user_id", claims["user_id"])
		c.Set("username", claims["username"])
		c.Set("role", claims["role"])
		c.Set("session_id", sessionID)
		c.Set("user_claims", claims)
		c.Next()
	}
}

/* GetUserID 从上下文读取已认证的用户 ID */
func GetUserID(c *gin.Context) string {
	return c.GetString("user_id")
}

/* GetUsername 从上下文读取已认证的用户名 */
func GetUsername(c *gin.Context) string {
	return c.GetString("username")
}

/* GetRole 从上下文读取已认证的角色 */
func GetRole(c *gin.Context) string {
	return c.GetString("role")
}

/* GetSessionID 从上下文读取当前会话 ID */
func GetSessionID(c *gin.Context) string {
	return c.GetString("session_id")
}
