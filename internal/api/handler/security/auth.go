package security

import (
	"errors"
	"net/http"
	"time"

	"github.com/Zuntie/worklenz/internal/api/middleware"
	"github.com/Zuntie/worklenz/internal/api/response"
	"github.com/Zuntie/worklenz/internal/db/models"
	"github.com/Zuntie/worklenz/internal/service"
	"github.com/Zuntie/worklenz/internal/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

/*
AuthHandler 认证处理器
功能：处理用户登录、登出和当前用户查询。
登录在凭据认证通过后还需经过公会准入闸门：
非公会成员即使密码正确也无法登录。
*/
type AuthHandler struct {
	app     *types.App
	userSvc *service.GormUserService
	gate    *service.GuildGate /* 公会未启用时为 nil */
	captcha *CaptchaHandler
	kicker  service.SessionKicker /* 登出时断开 WebSocket，可为 nil */
	logger  *zap.Logger
}

/*
NewAuthHandler 创建认证处理器
*/
func NewAuthHandler(app *types.App, gate *service.GuildGate, captcha *CaptchaHandler) *AuthHandler {
	return &AuthHandler{
		app:     app,
		userSvc: service.NewGormUserService(app.DB.GormDB),
		gate:    gate,
		captcha: captcha,
		logger:  zap.L().Named("auth-handler"),
	}
}

/* SetKicker 注入在线连接踢出器 */
func (h *AuthHandler) SetKicker(k service.SessionKicker) {
	h.kicker = k
}

/* guildEnforced 公会准入是否生效。guild_id 缺失不在此处豁免：
闸门会对未配置的公会返回配置错误（关闭失败） */
func (h *AuthHandler) guildEnforced() bool {
	return h.app.Config.Guild.Enabled
}

/*
LoginRequest 登录请求
*/
type LoginRequest struct {
	Username    string `json:"username" binding:"required,max=32"`
	Password    string `json:"password" binding:"required,max=128"`
	CaptchaID   string `json:"captcha_id"`
	CaptchaCode string `json:"captcha_code"`
}

/*
LoginResponse 登录响应
*/
type LoginResponse struct {
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	ExpiresAt int64  `json:"expires_at"`
}

/*
Login 用户登录
功能：验证码校验 → 凭据认证 → 公会准入闸门 → 创建会话 → 生成JWT
路由：POST /api/v1/auth/login
*/
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.GinBadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	if !h.app.Config.Auth.AllowPassword {
		response.GinForbidden(c, "密码登录已禁用，请使用 Discord 登录")
		return
	}

	/* 验证码检查（如果启用） */
	if h.app.Config.Captcha.Enabled && h.app.Config.Captcha.EnableLogin {
		if req.CaptchaID == "" || req.CaptchaCode == "" {
			response.GinBadRequest(c, "请输入验证码")
			return
		}
		if !h.captcha.VerifyCaptcha(req.CaptchaID, req.CaptchaCode) {
			response.GinBadRequest(c, "验证码无效或已过期")
			return
		}
	}

	/* 凭据认证 */
	user, err := h.userSvc.Authenticate(req.Username, req.Password)
	if err != nil {
		h.logger.Debug("登录认证失败",
			zap.String("username", req.Username),
			zap.String("client_ip", c.ClientIP()),
			zap.Error(err))
		/* 统一返回模糊错误信息，防止用户名枚举攻击 */
		response.GinUnauthorized(c, "用户名或密码错误")
		return
	}

	/* 公会准入闸门：凭据正确也必须是公会成员 */
	if !h.authorizeGuild(c, user) {
		return
	}

	h.issueSession(c, user)
}

/*
authorizeGuild 公会准入检查
功能：管理员豁免；其余用户必须绑定外部身份且为公会成员。
返回 false 时响应已写出，调用方直接 return。
*/
func (h *AuthHandler) authorizeGuild(c *gin.Context, user *models.User) bool {
	if !h.guildEnforced() || user.Role == models.RoleAdmin {
		return true
	}

	/* 准入已启用但闸门缺失：按配置错误处理，绝不放行 */
	if h.gate == nil {
		response.GinInternalError(c, "服务配置错误", service.ErrGuildNotConfigured)
		return false
	}

	decision, err := h.gate.Authorize(c.Request.Context(), user.DiscordID)
	if err != nil {
		if errors.Is(err, service.ErrGuildNotConfigured) {
			response.GinInternalError(c, "服务配置错误", err)
			return false
		}
		/* 权威不可用：关闭失败，拒绝访问并提示重试 */
		response.GinError(c, http.StatusServiceUnavailable, "公会资格暂时无法确认，请稍后重试")
		return false
	}
	if !decision.Allowed {
		h.logger.Info("公会准入拒绝登录",
			zap.String("username", user.Username),
			zap.String("discord_id", user.DiscordID),
			zap.String("source", string(decision.Source)))
		response.GinForbidden(c, "当前账号不是公会成员，无法登录")
		return false
	}
	return true
}

/*
issueSession 创建会话行并签发 JWT
功能：会话行是令牌有效性的权威：行被删除令牌立即失效
*/
func (h *AuthHandler) issueSession(c *gin.Context, user *models.User) {
	expiresAt := time.Now().Add(time.Duration(h.app.Config.Auth.JWTExpiration) * time.Hour)

	session := &models.Session{
		UserID:    user.ID,
		DiscordID: user.DiscordID,
		ExpiresAt: expiresAt,
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		LastSeen:  time.Now(),
	}
	if err := h.app.DAO.CreateSession(session); err != nil {
		response.GinInternalError(c, "创建会话失败", err)
		return
	}

	token, err := middleware.GenerateJWT(
		user.ID,
		user.Username,
		string(user.Role),
		session.ID,
		h.app.Config.Auth.JWTSecret,
		h.app.Config.Auth.JWTExpiration,
	)
	if err != nil {
		h.logger.Error("生成令牌失败", zap.Error(err))
		response.GinInternalError(c, "生成令牌失败", err)
		return
	}

	response.GinSuccess(c, LoginResponse{
		Token:     token,
		UserID:    user.ID,
		Username:  user.Username,
		Role:      string(user.Role),
		ExpiresAt: expiresAt.Unix(),
	})
}

/*
Logout 用户登出
功能：删除会话行（令牌硬性失效）并断开该会话的 WebSocket 连接
路由：POST /api/v1/auth/logout
*/
func (h *AuthHandler) Logout(c *gin.Context) {
	sessionID := middleware.GetSessionID(c)
	if sessionID != "" {
		if err := h.app.DAO.DeleteSession(sessionID); err != nil {
			response.GinInternalError(c, "登出失败", err)
			return
		}
		if h.kicker != nil {
			h.kicker.KickSession(sessionID, "已登出")
		}
	}

	response.GinSuccessWithMessage(c, "已成功登出", nil)
}

/*
Me 查询当前用户
路由：GET /api/v1/auth/me
*/
func (h *AuthHandler) Me(c *gin.Context) {
	userID := middleware.GetUserID(c)
	user, err := h.app.DAO.GetUser(userID)
	if err != nil {
		response.GinInternalError(c, "查询用户失败", err)
		return
	}
	if user == nil {
		response.GinNotFound(c, "用户不存在")
		return
	}

	response.GinSuccess(c, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"role":       user.Role,
		"avatar":     user.Avatar,
		"time_zone":  user.TimeZone,
		"discord_id": user.DiscordID,
		"last_login": user.LastLogin,
	})
}
